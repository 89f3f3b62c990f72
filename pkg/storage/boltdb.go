package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cuemby/atlas/pkg/types"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketClusters    = []byte("clusters")
	bucketDataCentres = []byte("data_centres")
	bucketNodes       = []byte("nodes")
	bucketEdges       = []byte("edges")
)

// BoltStore implements Store on an embedded bbolt database. Each method is
// exactly one bbolt transaction; bbolt's own ACID guarantees are strictly
// stronger than the "commit after draining each completion" discipline the
// original relational store relied on.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if necessary) the database file under
// dataDir and ensures all four buckets exist.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "atlas.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{bucketClusters, bucketDataCentres, bucketNodes, bucketEdges}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Clusters

func (s *BoltStore) InsertCluster(name string) (*types.Cluster, error) {
	c := &types.Cluster{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now(),
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClusters)
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		return b.Put([]byte(c.ID), data)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *BoltStore) GetCluster(id string) (*types.Cluster, error) {
	var c types.Cluster
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClusters)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("cluster not found: %s", id)
		}
		return json.Unmarshal(data, &c)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *BoltStore) DeleteCluster(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketClusters).Delete([]byte(id))
	})
}

// Data centres

func (s *BoltStore) InsertDataCentre(clusterID string) (*types.DataCentre, error) {
	dc := &types.DataCentre{
		ID:        uuid.New().String(),
		Cluster:   clusterID,
		CreatedAt: time.Now(),
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDataCentres)
		data, err := json.Marshal(dc)
		if err != nil {
			return err
		}
		return b.Put([]byte(dc.ID), data)
	})
	if err != nil {
		return nil, err
	}
	return dc, nil
}

func (s *BoltStore) ListDataCentres(clusterID string) ([]*types.DataCentre, error) {
	var out []*types.DataCentre
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDataCentres)
		return b.ForEach(func(k, v []byte) error {
			var dc types.DataCentre
			if err := json.Unmarshal(v, &dc); err != nil {
				return err
			}
			if dc.Cluster == clusterID {
				out = append(out, &dc)
			}
			return nil
		})
	})
	return out, err
}

// Nodes

func (s *BoltStore) InsertNode(node *types.Node) (*types.Node, error) {
	n := *node
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		data, err := json.Marshal(&n)
		if err != nil {
			return err
		}
		return b.Put([]byte(n.ID), data)
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *BoltStore) GetNode(id string) (*types.Node, error) {
	var n types.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("node not found: %s", id)
		}
		return json.Unmarshal(data, &n)
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *BoltStore) ListNodesByCluster(clusterID string) ([]*types.Node, error) {
	var out []*types.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		return b.ForEach(func(k, v []byte) error {
			var n types.Node
			if err := json.Unmarshal(v, &n); err != nil {
				return err
			}
			if n.Cluster == clusterID {
				out = append(out, &n)
			}
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) NodesByType(dataCentreID string, typ types.TaskType) ([]*types.Node, error) {
	var out []*types.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		return b.ForEach(func(k, v []byte) error {
			var n types.Node
			if err := json.Unmarshal(v, &n); err != nil {
				return err
			}
			if n.DataCentre == dataCentreID && n.Type == typ {
				out = append(out, &n)
			}
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) UpdateNodeState(id string, state types.State) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("node not found: %s", id)
		}
		var n types.Node
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		n.State = state
		out, err := json.Marshal(&n)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), out)
	})
}

func (s *BoltStore) UpdateNodePayload(id string, payload []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("node not found: %s", id)
		}
		var n types.Node
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		n.Payload = payload
		out, err := json.Marshal(&n)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), out)
	})
}

func (s *BoltStore) DeleteNode(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).Delete([]byte(id))
	})
}

// Edges

func (s *BoltStore) InsertEdge(edge *types.Edge) (*types.Edge, error) {
	e := *edge
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEdges)
		data, err := json.Marshal(&e)
		if err != nil {
			return err
		}
		return b.Put([]byte(e.ID), data)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// EdgesByCluster is a plain cluster-scoped scan. The original builder used
// a recursive CTE here, but only ever for de-duplication — each edge is
// inserted once per cluster, so a scan already returns each edge once and
// no transitive closure is needed.
func (s *BoltStore) EdgesByCluster(clusterID string) ([]*types.Edge, error) {
	var out []*types.Edge
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEdges)
		return b.ForEach(func(k, v []byte) error {
			var e types.Edge
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if e.Cluster == clusterID {
				out = append(out, &e)
			}
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) DeleteEdge(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEdges).Delete([]byte(id))
	})
}

// ParentPayloads joins edges (by ToNode) with nodes (by FromNode) inside a
// single read transaction — the Go analogue of Task.parents(type?).
func (s *BoltStore) ParentPayloads(nodeID string, typeFilter types.TaskType) ([]types.ParentPayload, error) {
	var out []types.ParentPayload
	err := s.db.View(func(tx *bolt.Tx) error {
		eb := tx.Bucket(bucketEdges)
		nb := tx.Bucket(bucketNodes)

		var fromIDs []string
		if err := eb.ForEach(func(k, v []byte) error {
			var e types.Edge
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if e.ToNode == nodeID {
				fromIDs = append(fromIDs, e.FromNode)
			}
			return nil
		}); err != nil {
			return err
		}

		for _, fromID := range fromIDs {
			data := nb.Get([]byte(fromID))
			if data == nil {
				return fmt.Errorf("parent node not found: %s", fromID)
			}
			var n types.Node
			if err := json.Unmarshal(data, &n); err != nil {
				return err
			}
			if typeFilter != "" && n.Type != typeFilter {
				continue
			}
			out = append(out, types.ParentPayload{
				Type:    n.Type,
				State:   n.State,
				Payload: n.Payload,
			})
		}
		return nil
	})
	return out, err
}
