// File path: internal/corpus/store.go
package corpus

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jbpark-dev/storesense/internal/common"
	"github.com/jbpark-dev/storesense/internal/common/telemetry"
)

// ErrNotFound reports a missing index or metadata artifact. The condition
// is fatal for the request that needed the corpus; there is no partial
// load.
var ErrNotFound = errors.New("corpus artifact not found")

const (
	indexMagic   = "SSVX"
	indexVersion = 1

	// Metadata lines can carry long report texts.
	maxMetaLine = 1 << 20
)

// Index is a read-only exact nearest-neighbor index over unit-length
// float32 vectors. Vector i corresponds to metadata record i.
type Index struct {
	dim     int
	vectors [][]float32
}

// Corpus pairs an index with its metadata records. Immutable after Load.
type Corpus struct {
	Name    string
	Index   *Index
	Records []Record
}

// Match is one nearest-neighbor hit: a vector position and its cosine
// score against the query.
type Match struct {
	Position int
	Score    float32
}

// Load reads the `<name>.vec` index and `<name>_metadata.jsonl` records
// from dir as a matched pair. Either file missing yields ErrNotFound;
// a size mismatch between the two is a load error.
func Load(dir, name string) (*Corpus, error) {
	logger := common.Logger()
	indexPath := filepath.Join(dir, name+".vec")
	metaPath := filepath.Join(dir, name+"_metadata.jsonl")
	for _, path := range []string{indexPath, metaPath} {
		if _, err := os.Stat(path); err != nil {
			logger.Warn("corpus: artifact missing", "corpus", name, "path", path)
			return nil, fmt.Errorf("corpus %q: %s: %w", name, path, ErrNotFound)
		}
	}
	if err := telemetry.CheckMemoryBudget("corpus-load"); err != nil {
		return nil, fmt.Errorf("corpus %q: %w", name, err)
	}
	index, err := readIndex(indexPath)
	if err != nil {
		return nil, fmt.Errorf("corpus %q: %w", name, err)
	}
	records, err := readMetadata(metaPath)
	if err != nil {
		return nil, fmt.Errorf("corpus %q: %w", name, err)
	}
	if len(records) != index.Len() {
		return nil, fmt.Errorf("corpus %q: index size %d does not match metadata count %d",
			name, index.Len(), len(records))
	}
	logger.Info("corpus: loaded", "corpus", name, "records", len(records), "dim", index.Dim())
	return &Corpus{Name: name, Index: index, Records: records}, nil
}

// Len reports the number of indexed vectors.
func (ix *Index) Len() int { return len(ix.vectors) }

// Dim reports the vector dimension.
func (ix *Index) Dim() int { return ix.dim }

// Search returns up to topK positions ranked by cosine similarity to the
// query. Stored vectors are unit length, so the dot product is the cosine.
// An empty index or zero query yields no matches.
func (ix *Index) Search(query []float32, topK int) []Match {
	if ix == nil || len(ix.vectors) == 0 || len(query) != ix.dim || topK <= 0 {
		return nil
	}
	matches := make([]Match, 0, len(ix.vectors))
	for pos, vec := range ix.vectors {
		var dot float32
		for i := range vec {
			dot += vec[i] * query[i]
		}
		matches = append(matches, Match{Position: pos, Score: dot})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

func readIndex(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("read index header: %w", err)
	}
	if string(magic) != indexMagic {
		return nil, fmt.Errorf("not a vector index file: %s", path)
	}
	var header struct {
		Version uint32
		Dim     uint32
		Count   uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("read index header: %w", err)
	}
	if header.Version != indexVersion {
		return nil, fmt.Errorf("unsupported index version %d", header.Version)
	}
	if header.Dim == 0 {
		return nil, fmt.Errorf("index %s has zero dimension", path)
	}
	vectors := make([][]float32, header.Count)
	buf := make([]byte, int(header.Dim)*4)
	for i := range vectors {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		vec := make([]float32, header.Dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
		}
		vectors[i] = vec
	}
	return &Index{dim: int(header.Dim), vectors: vectors}, nil
}

func readMetadata(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxMetaLine)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("metadata line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// WriteIndex persists vectors in the index file format. Used by the
// offline corpus build tooling and by tests that stage fixture corpora.
func WriteIndex(path string, vectors [][]float32) error {
	if len(vectors) == 0 {
		return errors.New("no vectors to write")
	}
	dim := len(vectors[0])
	for i, vec := range vectors {
		if len(vec) != dim {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(vec), dim)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if _, err := w.WriteString(indexMagic); err != nil {
		return err
	}
	header := struct {
		Version uint32
		Dim     uint32
		Count   uint32
	}{indexVersion, uint32(dim), uint32(len(vectors))}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	for _, vec := range vectors {
		if err := binary.Write(w, binary.LittleEndian, vec); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Catalog caches loaded corpora for the process lifetime so repeated
// report requests do not re-read artifacts from disk.
type Catalog struct {
	mu     sync.RWMutex
	loaded map[string]*Corpus
}

func NewCatalog() *Catalog {
	return &Catalog{loaded: make(map[string]*Corpus)}
}

// Get returns the corpus at (dir, name), loading it on first use.
func (c *Catalog) Get(dir, name string) (*Corpus, error) {
	key := dir + "|" + name
	c.mu.RLock()
	cached, ok := c.loaded[key]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}
	loaded, err := Load(dir, name)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.loaded[key]; ok {
		return existing, nil
	}
	c.loaded[key] = loaded
	return loaded, nil
}
