package catalog

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sushant-115/sukunadb/core/buffer"
	"github.com/sushant-115/sukunadb/core/indexing/bptree"
)

var (
	ErrTableExists   = errors.New("table already exists")
	ErrTableNotFound = errors.New("table not found")
	ErrIndexExists   = errors.New("index already exists")
	ErrIndexNotFound = errors.New("index not found")
)

// Default fan-outs for catalog-created B+ tree indexes.
const (
	defaultLeafMaxSize     = 64
	defaultInternalMaxSize = 64
)

// TableInfo describes one table: its schema and backing heap.
type TableInfo struct {
	OID    uint32
	Name   string
	Schema *Schema
	Heap   *TableHeap
}

// Catalog maps names and oids onto tables and indexes. It is an
// in-memory registry; table contents live in the buffer pool.
type Catalog struct {
	mu           sync.RWMutex
	bpm          *buffer.BufferPoolManager
	logger       *zap.Logger
	nextTableOID uint32
	nextIndexOID uint32
	tables       map[uint32]*TableInfo
	tableNames   map[string]uint32
	indexes      map[uint32]*IndexInfo
	indexNames   map[string]map[string]uint32 // table -> index name -> oid
}

// NewCatalog creates an empty catalog over the buffer pool.
func NewCatalog(bpm *buffer.BufferPoolManager, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		bpm:        bpm,
		logger:     logger,
		tables:     make(map[uint32]*TableInfo),
		tableNames: make(map[string]uint32),
		indexes:    make(map[uint32]*IndexInfo),
		indexNames: make(map[string]map[string]uint32),
	}
}

// CreateTable registers a new table with an empty heap.
func (c *Catalog) CreateTable(name string, schema *Schema) (*TableInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tableNames[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrTableExists, name)
	}
	heap, err := NewTableHeap(c.bpm, schema)
	if err != nil {
		return nil, err
	}
	info := &TableInfo{
		OID:    c.nextTableOID,
		Name:   name,
		Schema: schema,
		Heap:   heap,
	}
	c.nextTableOID++
	c.tables[info.OID] = info
	c.tableNames[name] = info.OID
	c.indexNames[name] = make(map[string]uint32)
	c.logger.Info("created table", zap.String("table", name), zap.Uint32("oid", info.OID))
	return info, nil
}

// GetTable looks a table up by oid.
func (c *Catalog) GetTable(oid uint32) (*TableInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.tables[oid]
	if !ok {
		return nil, fmt.Errorf("%w: oid %d", ErrTableNotFound, oid)
	}
	return info, nil
}

// GetTableByName looks a table up by name.
func (c *Catalog) GetTableByName(name string) (*TableInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	oid, ok := c.tableNames[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return c.tables[oid], nil
}

// CreateIndex builds a B+ tree index over keyAttrs of tableName and
// backfills it from the table's existing tuples.
func (c *Catalog) CreateIndex(indexName, tableName string, keyAttrs []int) (*IndexInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tableOID, ok := c.tableNames[tableName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, tableName)
	}
	table := c.tables[tableOID]
	if _, ok := c.indexNames[tableName][indexName]; ok {
		return nil, fmt.Errorf("%w: %s", ErrIndexExists, indexName)
	}

	keySchema := CopySchema(table.Schema, keyAttrs)
	keySize := keySizeFor(keySchema)
	tree, err := bptree.New(c.bpm, bptree.BytesComparator, keySize,
		defaultLeafMaxSize, defaultInternalMaxSize, c.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create index tree: %w", err)
	}

	info := &IndexInfo{
		OID:       c.nextIndexOID,
		Name:      indexName,
		TableName: tableName,
		KeySchema: keySchema,
		KeyAttrs:  keyAttrs,
		Index:     tree,
		keySize:   keySize,
	}
	c.nextIndexOID++

	// Backfill from live tuples.
	it, err := table.Heap.MakeIterator()
	if err != nil {
		return nil, err
	}
	for {
		meta, tuple, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if meta.IsDeleted {
			continue
		}
		if err := info.InsertEntry(tuple.KeyFromTuple(keyAttrs), tuple.RID()); err != nil {
			return nil, fmt.Errorf("failed to backfill index %s: %w", indexName, err)
		}
	}

	c.indexes[info.OID] = info
	c.indexNames[tableName][indexName] = info.OID
	c.logger.Info("created index",
		zap.String("index", indexName),
		zap.String("table", tableName),
		zap.Uint32("oid", info.OID))
	return info, nil
}

// GetIndex looks an index up by oid.
func (c *Catalog) GetIndex(oid uint32) (*IndexInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.indexes[oid]
	if !ok {
		return nil, fmt.Errorf("%w: oid %d", ErrIndexNotFound, oid)
	}
	return info, nil
}

// GetTableIndexes returns every index declared on tableName.
func (c *Catalog) GetTableIndexes(tableName string) []*IndexInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*IndexInfo
	for _, oid := range c.indexNames[tableName] {
		out = append(out, c.indexes[oid])
	}
	return out
}
