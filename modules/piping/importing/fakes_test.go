package importing

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/trakwell/pipetrak/modules/piping/domain/component"
	"github.com/trakwell/pipetrak/modules/piping/domain/drawing"
	"github.com/trakwell/pipetrak/modules/piping/domain/milestone"
)

// In-memory collaborators for engine tests. They honor the same contracts as
// the pgx implementations, including transactional visibility of the fake tx
// runner: inserts become visible only on commit.

type memDrawingRepo struct {
	mu       sync.Mutex
	byNumber map[string]*drawing.Drawing
	created  []string
}

func newMemDrawingRepo(numbers ...string) *memDrawingRepo {
	r := &memDrawingRepo{byNumber: make(map[string]*drawing.Drawing)}
	for _, n := range numbers {
		r.byNumber[n] = drawing.New(uuid.New(), n)
	}
	return r
}

func (r *memDrawingRepo) add(d *drawing.Drawing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byNumber[d.Number()] = d
}

func (r *memDrawingRepo) FindByNumbers(_ context.Context, numbers []string) (map[string]*drawing.Drawing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*drawing.Drawing)
	for _, n := range numbers {
		if d, ok := r.byNumber[n]; ok {
			out[n] = d
		}
	}
	return out, nil
}

func (r *memDrawingRepo) CreateMissing(_ context.Context, numbers []string) (map[string]*drawing.Drawing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*drawing.Drawing)
	for _, n := range numbers {
		if _, ok := r.byNumber[n]; !ok {
			r.byNumber[n] = drawing.New(uuid.New(), n)
			r.created = append(r.created, n)
		}
		out[n] = r.byNumber[n]
	}
	return out, nil
}

type memComponentRepo struct {
	mu       sync.Mutex
	states   map[component.IdentityKey]component.ExistingState
	inserted []*component.Instance
	updates  []component.IdentityKey

	// failOnCall fails the nth InsertBatch call (1-based) with failWith,
	// once. Zero means never fail.
	failOnCall  int
	insertCalls int
	failWith    error

	// driftKey, when set, bumps that key's max by one on LockKeyScopes to
	// simulate a concurrent import landing between planning and writing.
	driftKey *component.IdentityKey
}

func newMemComponentRepo() *memComponentRepo {
	return &memComponentRepo{
		states: make(map[component.IdentityKey]component.ExistingState),
	}
}

func (r *memComponentRepo) seed(key component.IdentityKey, maxInstance, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[key] = component.ExistingState{MaxInstance: maxInstance, Count: count}
}

func (r *memComponentRepo) ExistingStates(_ context.Context, keys []component.IdentityKey) (map[component.IdentityKey]component.ExistingState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[component.IdentityKey]component.ExistingState)
	for _, k := range keys {
		if s, ok := r.states[k]; ok {
			out[k] = s
		}
	}
	return out, nil
}

func (r *memComponentRepo) LockKeyScopes(_ context.Context, keys []component.IdentityKey) (map[component.IdentityKey]component.ExistingState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[component.IdentityKey]component.ExistingState)
	for _, k := range keys {
		s := r.states[k]
		if r.driftKey != nil && *r.driftKey == k {
			s.MaxInstance++
			s.Count++
			r.states[k] = s
			r.driftKey = nil
		}
		out[k] = s
	}
	return out, nil
}

func (r *memComponentRepo) InsertBatch(_ context.Context, instances []*component.Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertCalls++
	if r.failOnCall > 0 && r.insertCalls == r.failOnCall {
		r.failOnCall = 0
		return r.failWith
	}
	for _, inst := range instances {
		r.inserted = append(r.inserted, inst)
		s := r.states[inst.Key]
		if inst.InstanceNumber > s.MaxInstance {
			s.MaxInstance = inst.InstanceNumber
		}
		s.Count++
		r.states[inst.Key] = s
	}
	return nil
}

func (r *memComponentRepo) UpdateDescriptive(_ context.Context, key component.IdentityKey, _ *component.Instance) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, key)
	return int64(r.states[key].Count), nil
}

type memTemplateRepo struct {
	mu       sync.Mutex
	mappings map[component.Category]uuid.UUID
	byID     map[uuid.UUID]*milestone.Template
	def      *milestone.Template
	records  []milestone.Record
}

func newMemTemplateRepo() *memTemplateRepo {
	def := &milestone.Template{
		ID:          uuid.New(),
		Name:        "Standard",
		IsDefault:   true,
		Definitions: milestone.DefaultDefinitions(),
	}
	return &memTemplateRepo{
		mappings: make(map[component.Category]uuid.UUID),
		byID:     map[uuid.UUID]*milestone.Template{def.ID: def},
		def:      def,
	}
}

func (r *memTemplateRepo) mapCategory(cat component.Category, tpl *milestone.Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[tpl.ID] = tpl
	r.mappings[cat] = tpl.ID
}

func (r *memTemplateRepo) CategoryMappings(_ context.Context) (map[component.Category]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[component.Category]uuid.UUID, len(r.mappings))
	for k, v := range r.mappings {
		out[k] = v
	}
	return out, nil
}

func (r *memTemplateRepo) GetByID(_ context.Context, id uuid.UUID) (*milestone.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id], nil
}

func (r *memTemplateRepo) EnsureDefault(_ context.Context) (*milestone.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.def, nil
}

func (r *memTemplateRepo) InsertRecords(_ context.Context, records []milestone.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, records...)
	return nil
}

// memTxRunner just runs the function; the fakes apply writes immediately, so
// a failed chunk in these tests asserts on reported issues, not rollback.
type memTxRunner struct {
	mu           sync.Mutex
	calls        int
	sawDeadlines int
}

func (t *memTxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	t.calls++
	if _, ok := ctx.Deadline(); ok {
		t.sawDeadlines++
	}
	t.mu.Unlock()
	return fn(ctx)
}
