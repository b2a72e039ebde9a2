package importing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/trakwell/pipetrak/modules/piping/domain/component"
	"github.com/trakwell/pipetrak/modules/piping/domain/milestone"
	"github.com/trakwell/pipetrak/pkg/composables"
	"github.com/trakwell/pipetrak/pkg/serrors"
)

var (
	ErrConcurrentImport = serrors.NewError("IMPORT_CONCURRENT_NUMBERING",
		"instance numbering drifted since planning; another import touched the same keys",
		"re-run the import; numbering is re-planned from current state")
	ErrPersistenceConflict = serrors.NewError("IMPORT_PERSISTENCE_CONFLICT",
		"unique constraint violated while writing instances", "")
)

// TxRunner runs a function inside one database transaction. It exists so the
// engine can be exercised without a live pool.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PoolTxRunner is the production TxRunner, backed by the pool in context.
type PoolTxRunner struct{}

func (PoolTxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return composables.InTx(ctx, fn)
}

// PersistOutcome summarizes what the batcher wrote.
type PersistOutcome struct {
	Created      int
	Updated      int
	Skipped      int
	FailedChunks int
	InstanceIDs  []uuid.UUID
	// Aborted is set when AllOrNothing stopped the run after a chunk
	// failure. Chunks committed before the failure stay committed.
	Aborted bool
}

// Batcher writes planned instances and their milestone records in bounded
// chunks, one transaction per chunk. Numbering is re-verified against locked
// key scopes inside every chunk transaction, so two concurrent imports can
// never both claim the same instance numbers (pessimistic check).
type Batcher struct {
	instances component.Repository
	templates milestone.TemplateRepository
	tx        TxRunner
	log       *logrus.Logger
}

func NewBatcher(instances component.Repository, templates milestone.TemplateRepository, tx TxRunner, log *logrus.Logger) *Batcher {
	return &Batcher{instances: instances, templates: templates, tx: tx, log: log}
}

// Persist writes all planned expansions. Chunk failures roll back that chunk
// only and are reported against every row in it; later chunks proceed unless
// opts.AllOrNothing.
func (b *Batcher) Persist(ctx context.Context, expansions []*Expansion, records []milestone.Record, opts Options, report *Report) (*PersistOutcome, error) {
	opts = opts.withDefaults()
	outcome := &PersistOutcome{}

	recordsByInstance := make(map[uuid.UUID][]milestone.Record, len(records))
	for _, r := range records {
		recordsByInstance[r.InstanceID] = append(recordsByInstance[r.InstanceID], r)
	}

	// Flatten planned instances, remembering each one's source row and the
	// planning-time max for its key.
	type planned struct {
		inst       *component.Instance
		row        int
		plannedMax int
	}
	var flat []planned
	for _, exp := range expansions {
		if exp.Skipped {
			outcome.Skipped++
			continue
		}
		for _, inst := range exp.Instances {
			flat = append(flat, planned{inst: inst, row: exp.Candidate.Row, plannedMax: exp.PlannedMax})
		}
	}

	if err := b.applyUpdates(ctx, expansions, opts, outcome, report); err != nil {
		return nil, err
	}

	writtenPerKey := make(map[component.IdentityKey]int)

	for start := 0; start < len(flat); start += opts.ChunkSize {
		if err := ctx.Err(); err != nil {
			// Cooperative abort between chunks; committed chunks stay.
			return outcome, err
		}

		end := start + opts.ChunkSize
		if end > len(flat) {
			end = len(flat)
		}
		chunk := flat[start:end]
		chunkIndex := start / opts.ChunkSize

		// A stuck chunk must not hold its key-scope locks forever.
		chunkCtx, cancel := context.WithTimeout(ctx, opts.ChunkTimeout)
		err := b.tx.InTx(chunkCtx, func(txCtx context.Context) error {
			// Re-read the numbering state with the key scopes locked for
			// the rest of this transaction.
			keySet := make(map[component.IdentityKey]int, len(chunk))
			var keys []component.IdentityKey
			for _, p := range chunk {
				if _, seen := keySet[p.inst.Key]; !seen {
					keySet[p.inst.Key] = p.plannedMax
					keys = append(keys, p.inst.Key)
				}
			}
			current, err := b.instances.LockKeyScopes(txCtx, keys)
			if err != nil {
				return fmt.Errorf("lock key scopes: %w", err)
			}
			for _, key := range keys {
				expected := keySet[key] + writtenPerKey[key]
				if current[key].MaxInstance != expected {
					return ErrConcurrentImport.WithDetails("key %s: planned max %d, found %d",
						key, expected, current[key].MaxInstance)
				}
			}

			instances := make([]*component.Instance, 0, len(chunk))
			var chunkRecords []milestone.Record
			for _, p := range chunk {
				instances = append(instances, p.inst)
				chunkRecords = append(chunkRecords, recordsByInstance[p.inst.ID]...)
			}
			if err := b.instances.InsertBatch(txCtx, instances); err != nil {
				return classifyWriteError(err)
			}
			if err := b.templates.InsertRecords(txCtx, chunkRecords); err != nil {
				return classifyWriteError(err)
			}
			return nil
		})
		cancel()

		if err != nil {
			outcome.FailedChunks++
			b.log.WithFields(logrus.Fields{
				"chunk": chunkIndex,
				"size":  len(chunk),
			}).WithError(err).Error("chunk write failed")

			rows := make(map[int]bool)
			for _, p := range chunk {
				if rows[p.row] {
					continue
				}
				rows[p.row] = true
				report.AddError(p.row, "", CodeChunkFailed,
					fmt.Sprintf("chunk %d failed: %v", chunkIndex, err), "")
			}

			if opts.AllOrNothing {
				outcome.Aborted = true
				return outcome, nil
			}
			continue
		}

		for _, p := range chunk {
			writtenPerKey[p.inst.Key]++
			outcome.Created++
			outcome.InstanceIDs = append(outcome.InstanceIDs, p.inst.ID)
		}
	}

	return outcome, nil
}

// applyUpdates refreshes descriptive fields for update-existing keys, in
// bounded transactions like the insert path.
func (b *Batcher) applyUpdates(ctx context.Context, expansions []*Expansion, opts Options, outcome *PersistOutcome, report *Report) error {
	var updates []*Expansion
	for _, exp := range expansions {
		if exp.Updated {
			updates = append(updates, exp)
		}
	}
	for start := 0; start < len(updates); start += opts.ChunkSize {
		end := start + opts.ChunkSize
		if end > len(updates) {
			end = len(updates)
		}
		batch := updates[start:end]
		err := b.tx.InTx(ctx, func(txCtx context.Context) error {
			for _, exp := range batch {
				c := exp.Candidate
				n, err := b.instances.UpdateDescriptive(txCtx, c.IdentityKey(), c.Instance(uuid.Nil, 0, 0, uuid.Nil))
				if err != nil {
					return err
				}
				outcome.Updated += int(n)
			}
			return nil
		})
		if err != nil {
			for _, exp := range batch {
				report.AddError(exp.Candidate.Row, "", CodeChunkFailed,
					fmt.Sprintf("update failed: %v", err), "")
			}
			if opts.AllOrNothing {
				outcome.Aborted = true
				return nil
			}
		}
	}
	return nil
}

func classifyWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrPersistenceConflict.WithDetails("%s", pgErr.ConstraintName)
	}
	return err
}
