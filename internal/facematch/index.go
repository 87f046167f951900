package facematch

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"sync"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// IndexedNearest applies the BestMatchNearest decision rule to candidates
// walked from an in-memory HNSW graph over all stored embeddings. The graph is
// rebuilt whenever the roster it was built from changes. Every stored
// embedding is ranked by exact Euclidean distance, so the outcome always
// equals BestMatchNearest.
type IndexedNearest struct {
	Threshold float64

	mu    sync.Mutex
	index *rosterIndex
}

// NewIndexedNearest returns an HNSW-backed nearest-neighbour matcher.
func NewIndexedNearest(threshold float64) *IndexedNearest {
	if threshold <= 0 {
		threshold = config.DefaultPredictThreshold
	}
	return &IndexedNearest{Threshold: threshold}
}

func (m *IndexedNearest) Policy() string { return PolicyIndexed }

func (m *IndexedNearest) Match(query []float32, roster []database.StudentProfile) Result {
	idx := m.indexFor(roster)
	best, dist := idx.nearest(query)
	return decide(roster, best, dist, m.Threshold)
}

// Size returns the number of embeddings in the current index.
func (m *IndexedNearest) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index == nil {
		return 0
	}
	return len(m.index.owners)
}

func (m *IndexedNearest) indexFor(roster []database.StudentProfile) *rosterIndex {
	fp := rosterFingerprint(roster)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index == nil || m.index.fingerprint != fp {
		m.index = buildRosterIndex(roster, fp)
	}
	return m.index
}

// rosterIndex is never modified after build. Searches are serialized because
// hnsw.Graph is not safe for concurrent use.
type rosterIndex struct {
	fingerprint uint64
	graph       *hnsw.Graph[int64]
	owners      []int       // node key -> roster position
	vectors     [][]float32 // node key -> embedding
	dims        int
	mu          sync.Mutex
}

func buildRosterIndex(roster []database.StudentProfile, fp uint64) *rosterIndex {
	idx := &rosterIndex{fingerprint: fp}

	g := hnsw.NewGraph[int64]()
	g.M = constants.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(constants.HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = constants.HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance

	for i := range roster {
		for _, emb := range roster[i].Embeddings {
			if len(emb) == 0 {
				continue
			}
			if idx.dims == 0 {
				idx.dims = len(emb)
			}
			// The graph requires one dimension; foreign embeddings can never match anyway.
			if len(emb) != idx.dims {
				continue
			}
			key := int64(len(idx.owners))
			g.Add(hnsw.MakeNode(key, emb))
			idx.owners = append(idx.owners, i)
			idx.vectors = append(idx.vectors, emb)
		}
	}

	// The layer-0 walk stops early once its candidate queue is capped, so
	// queries use a queue that can hold the whole graph.
	g.EfSearch = max(constants.HNSWEfSearch, len(idx.owners))
	idx.graph = g
	return idx
}

// nearest returns the roster position of the closest embedding and its exact
// distance, or -1 and +Inf when nothing is comparable. Nodes the graph walk
// did not reach are compared directly.
func (idx *rosterIndex) nearest(query []float32) (int, float64) {
	if len(idx.owners) == 0 || len(query) != idx.dims {
		return -1, math.Inf(1)
	}

	idx.mu.Lock()
	neighbors := idx.graph.Search(query, len(idx.owners))
	idx.mu.Unlock()

	best := -1
	bestDist := math.Inf(1)
	consider := func(key int64) {
		owner := idx.owners[key]
		d := EuclideanDistance(idx.vectors[key], query)
		if d < bestDist || (d == bestDist && owner < best) {
			best, bestDist = owner, d
		}
	}

	reached := make([]bool, len(idx.owners))
	for _, n := range neighbors {
		reached[n.Key] = true
		consider(n.Key)
	}
	for key, ok := range reached {
		if !ok {
			consider(int64(key))
		}
	}
	return best, bestDist
}

// rosterFingerprint hashes student IDs and every embedding value, in roster
// order. A student deleted and registered again under the same ID with new
// photos yields a different fingerprint.
func rosterFingerprint(roster []database.StudentProfile) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for i := range roster {
		h.Write([]byte(roster[i].StudentID))
		h.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], uint64(len(roster[i].Embeddings)))
		h.Write(buf[:])
		for _, emb := range roster[i].Embeddings {
			binary.LittleEndian.PutUint64(buf[:], uint64(len(emb)))
			h.Write(buf[:])
			for _, v := range emb {
				binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(v))
				h.Write(buf[:4])
			}
		}
	}
	return h.Sum64()
}
