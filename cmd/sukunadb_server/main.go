// Command sukunadb_server runs a single-node engine behind a small
// line-oriented TCP protocol:
//
//	SET <key> <value>
//	GET <key>
//	DEL <key>
//	SCAN
//
// Every request runs as its own transaction through the optimizer and
// executor stack over one kv(key, value) table with a B+ tree index on
// key. This is the engine's demo surface, not part of its core contract.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sushant-115/sukunadb/core/buffer"
	"github.com/sushant-115/sukunadb/core/catalog"
	"github.com/sushant-115/sukunadb/core/concurrency"
	"github.com/sushant-115/sukunadb/core/execution"
	"github.com/sushant-115/sukunadb/core/optimizer"
	"github.com/sushant-115/sukunadb/core/storage/disk"
	"github.com/sushant-115/sukunadb/core/storage/page"
	"github.com/sushant-115/sukunadb/internal/config"
	"github.com/sushant-115/sukunadb/pkg/logger"
	"github.com/sushant-115/sukunadb/pkg/telemetry"
)

type engine struct {
	bpm     *buffer.BufferPoolManager
	catalog *catalog.Catalog
	lockMgr *concurrency.LockManager
	txnMgr  *concurrency.TransactionManager
	kv      *catalog.TableInfo
	kvIndex *catalog.IndexInfo
	logger  *zap.Logger
}

func newEngine(cfg config.Config, log *zap.Logger, metrics *telemetry.EngineMetrics) (*engine, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Engine.DataFile), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	opts := []disk.Option{disk.WithLogger(log)}
	if cfg.Engine.WriteLimitBytes > 0 {
		opts = append(opts, disk.WithWriteLimit(cfg.Engine.WriteLimitBytes, 0))
	}
	dm, err := disk.NewDiskManager(cfg.Engine.DataFile, page.DefaultPageSize, opts...)
	if err != nil {
		return nil, err
	}

	bpm := buffer.NewBufferPoolManager(cfg.Engine.PoolSize, cfg.Engine.ReplacerK, dm, log, metrics)
	cat := catalog.NewCatalog(bpm, log)
	lm := concurrency.NewLockManager(cfg.Engine.DeadlockInterval.Std(), log, metrics)
	tm := concurrency.NewTransactionManager(lm, cat, log, metrics)

	schema := catalog.NewSchema(
		catalog.Column{Name: "key", Type: catalog.TypeVarchar},
		catalog.Column{Name: "value", Type: catalog.TypeVarchar},
	)
	kv, err := cat.CreateTable("kv", schema)
	if err != nil {
		return nil, err
	}
	kvIndex, err := cat.CreateIndex("kv_key", "kv", []int{0})
	if err != nil {
		return nil, err
	}

	return &engine{
		bpm:     bpm,
		catalog: cat,
		lockMgr: lm,
		txnMgr:  tm,
		kv:      kv,
		kvIndex: kvIndex,
		logger:  log,
	}, nil
}

// run executes a plan in its own READ_COMMITTED transaction, aborting
// on any error.
func (e *engine) run(plan execution.PlanNode) ([]*catalog.Tuple, error) {
	txn := e.txnMgr.Begin(concurrency.ReadCommitted)
	ctx := execution.NewExecutorContext(txn, e.txnMgr, e.catalog, e.bpm, e.lockMgr, e.logger)
	rows, err := execution.Execute(ctx, optimizer.Optimize(plan))
	if err != nil {
		e.txnMgr.Abort(txn)
		return nil, err
	}
	e.txnMgr.Commit(txn)
	return rows, nil
}

func (e *engine) keyPredicate(key string) execution.Expression {
	return execution.NewComparison(execution.CmpEqual,
		execution.NewColumnValue(0, catalog.TypeVarchar),
		execution.NewConstant(catalog.NewVarcharValue(key)))
}

func (e *engine) scanPlan(pred execution.Expression) *execution.SeqScanPlan {
	return &execution.SeqScanPlan{
		TableOID:  e.kv.OID,
		TableName: e.kv.Name,
		Predicate: pred,
		OutSchema: e.kv.Schema,
	}
}

func (e *engine) set(key, value string) error {
	if _, err := e.run(&execution.DeletePlan{
		TableOID: e.kv.OID,
		Child:    e.scanPlan(e.keyPredicate(key)),
	}); err != nil {
		return err
	}
	_, err := e.run(&execution.InsertPlan{
		TableOID: e.kv.OID,
		Child: &execution.ValuesPlan{
			Rows: [][]execution.Expression{{
				execution.NewConstant(catalog.NewVarcharValue(key)),
				execution.NewConstant(catalog.NewVarcharValue(value)),
			}},
			OutSchema: e.kv.Schema,
		},
	})
	return err
}

func (e *engine) get(key string) (string, bool, error) {
	rows, err := e.run(e.scanPlan(e.keyPredicate(key)))
	if err != nil {
		return "", false, err
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].Value(1).AsString(), true, nil
}

func (e *engine) del(key string) (int64, error) {
	rows, err := e.run(&execution.DeletePlan{
		TableOID: e.kv.OID,
		Child:    e.scanPlan(e.keyPredicate(key)),
	})
	if err != nil {
		return 0, err
	}
	return rows[0].Value(0).AsInt(), nil
}

func (e *engine) scan() ([]*catalog.Tuple, error) {
	return e.run(&execution.IndexScanPlan{
		IndexOID:  e.kvIndex.OID,
		TableOID:  e.kv.OID,
		OutSchema: e.kv.Schema,
	})
}

func (e *engine) shutdown() {
	e.lockMgr.Close()
	if err := e.bpm.FlushAllPages(); err != nil {
		e.logger.Error("flush on shutdown failed", zap.Error(err))
	}
}

func handleConn(conn net.Conn, e *engine) {
	defer conn.Close()
	session := uuid.NewString()
	log := e.logger.With(zap.String("session", session), zap.String("remote", conn.RemoteAddr().String()))
	log.Info("client connected")

	scanner := bufio.NewScanner(conn)
	writer := bufio.NewWriter(conn)
	reply := func(format string, args ...any) {
		fmt.Fprintf(writer, format+"\n", args...)
		writer.Flush()
	}

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch strings.ToUpper(fields[0]) {
		case "SET":
			if len(fields) < 3 {
				reply("ERROR usage: SET <key> <value>")
				continue
			}
			if err := e.set(fields[1], strings.Join(fields[2:], " ")); err != nil {
				log.Warn("set failed", zap.Error(err))
				reply("ERROR %v", err)
				continue
			}
			reply("OK")
		case "GET":
			if len(fields) != 2 {
				reply("ERROR usage: GET <key>")
				continue
			}
			value, found, err := e.get(fields[1])
			if err != nil {
				log.Warn("get failed", zap.Error(err))
				reply("ERROR %v", err)
				continue
			}
			if !found {
				reply("NOT_FOUND")
				continue
			}
			reply("OK %s", value)
		case "DEL":
			if len(fields) != 2 {
				reply("ERROR usage: DEL <key>")
				continue
			}
			n, err := e.del(fields[1])
			if err != nil {
				log.Warn("del failed", zap.Error(err))
				reply("ERROR %v", err)
				continue
			}
			reply("OK %d", n)
		case "SCAN":
			rows, err := e.scan()
			if err != nil {
				log.Warn("scan failed", zap.Error(err))
				reply("ERROR %v", err)
				continue
			}
			for _, row := range rows {
				reply("%s=%s", row.Value(0).AsString(), row.Value(1).AsString())
			}
			reply("OK %d", len(rows))
		case "QUIT":
			reply("BYE")
			return
		default:
			reply("ERROR unknown command %s", fields[0])
		}
	}
	log.Info("client disconnected")
}

func main() {
	configPath := flag.String("config", "", "path to engine.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	metrics, shutdownTelemetry, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		log.Fatal("telemetry setup failed", zap.Error(err))
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	eng, err := newEngine(cfg, log, metrics)
	if err != nil {
		log.Fatal("engine setup failed", zap.Error(err))
	}
	defer eng.shutdown()

	listener, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		log.Fatal("listen failed", zap.String("addr", cfg.Server.Addr), zap.Error(err))
	}
	log.Info("sukunadb server listening", zap.String("addr", cfg.Server.Addr))

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Error("accept failed", zap.Error(err))
			continue
		}
		go handleConn(conn, eng)
	}
}
