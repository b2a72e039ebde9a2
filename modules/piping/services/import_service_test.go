package services_test

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trakwell/pipetrak/modules/piping/domain/component"
	"github.com/trakwell/pipetrak/modules/piping/domain/drawing"
	"github.com/trakwell/pipetrak/modules/piping/domain/milestone"
	"github.com/trakwell/pipetrak/modules/piping/importing"
	"github.com/trakwell/pipetrak/modules/piping/services"
	"github.com/trakwell/pipetrak/pkg/eventbus"
)

type stubDrawings struct {
	byNumber map[string]*drawing.Drawing
}

func (s *stubDrawings) FindByNumbers(_ context.Context, numbers []string) (map[string]*drawing.Drawing, error) {
	out := map[string]*drawing.Drawing{}
	for _, n := range numbers {
		if d, ok := s.byNumber[n]; ok {
			out[n] = d
		}
	}
	return out, nil
}

func (s *stubDrawings) CreateMissing(_ context.Context, numbers []string) (map[string]*drawing.Drawing, error) {
	out := map[string]*drawing.Drawing{}
	for _, n := range numbers {
		if _, ok := s.byNumber[n]; !ok {
			s.byNumber[n] = drawing.New(uuid.New(), n)
		}
		out[n] = s.byNumber[n]
	}
	return out, nil
}

type stubInstances struct {
	mu       sync.Mutex
	states   map[component.IdentityKey]component.ExistingState
	inserted []*component.Instance
}

func (s *stubInstances) ExistingStates(_ context.Context, keys []component.IdentityKey) (map[component.IdentityKey]component.ExistingState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[component.IdentityKey]component.ExistingState{}
	for _, k := range keys {
		if st, ok := s.states[k]; ok {
			out[k] = st
		}
	}
	return out, nil
}

func (s *stubInstances) LockKeyScopes(ctx context.Context, keys []component.IdentityKey) (map[component.IdentityKey]component.ExistingState, error) {
	out, _ := s.ExistingStates(ctx, keys)
	for _, k := range keys {
		if _, ok := out[k]; !ok {
			out[k] = component.ExistingState{}
		}
	}
	return out, nil
}

func (s *stubInstances) InsertBatch(_ context.Context, instances []*component.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inst := range instances {
		s.inserted = append(s.inserted, inst)
		st := s.states[inst.Key]
		st.Count++
		if inst.InstanceNumber > st.MaxInstance {
			st.MaxInstance = inst.InstanceNumber
		}
		s.states[inst.Key] = st
	}
	return nil
}

func (s *stubInstances) UpdateDescriptive(_ context.Context, key component.IdentityKey, _ *component.Instance) (int64, error) {
	return int64(s.states[key].Count), nil
}

type stubTemplates struct {
	def *milestone.Template
}

func (s *stubTemplates) CategoryMappings(context.Context) (map[component.Category]uuid.UUID, error) {
	return map[component.Category]uuid.UUID{}, nil
}

func (s *stubTemplates) GetByID(_ context.Context, id uuid.UUID) (*milestone.Template, error) {
	return s.def, nil
}

func (s *stubTemplates) EnsureDefault(context.Context) (*milestone.Template, error) {
	return s.def, nil
}

func (s *stubTemplates) InsertRecords(context.Context, []milestone.Record) error {
	return nil
}

type passthroughTx struct{}

func (passthroughTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newService(t *testing.T) (*services.ImportService, *stubInstances, eventbus.EventBus) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	bus := eventbus.NewEventPublisher(log)

	instances := &stubInstances{states: map[component.IdentityKey]component.ExistingState{}}
	drawings := &stubDrawings{byNumber: map[string]*drawing.Drawing{
		"P-101": drawing.New(uuid.New(), "P-101"),
	}}
	templates := &stubTemplates{def: &milestone.Template{
		ID:          uuid.New(),
		Name:        "Standard",
		IsDefault:   true,
		Definitions: milestone.DefaultDefinitions(),
	}}

	svc := services.NewImportService(drawings, instances, templates, passthroughTx{}, bus, log)
	return svc, instances, bus
}

var csvFile = []byte("Drawing No,Component ID,Type,Qty\nP-101,VLV-1,Valve,2\n")

func TestImportService_PublishesCompletionEvent(t *testing.T) {
	svc, instances, bus := newService(t)

	var mu sync.Mutex
	var events []services.ImportCompletedEvent
	bus.Subscribe(func(e services.ImportCompletedEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	projectID := uuid.New()
	res, err := svc.Import(context.Background(), projectID, csvFile, "c.csv", importing.KindComponent, importing.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Summary.Created)
	assert.Len(t, instances.inserted, 2)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, projectID, events[0].ProjectID)
	assert.Equal(t, importing.KindComponent, events[0].Kind)
	assert.Equal(t, 2, events[0].Summary.Created)
}

func TestImportService_DryRunPublishesNothing(t *testing.T) {
	svc, instances, bus := newService(t)

	fired := false
	bus.Subscribe(func(services.ImportCompletedEvent) { fired = true })

	res, err := svc.Import(context.Background(), uuid.New(), csvFile, "c.csv", importing.KindComponent, importing.Options{DryRun: true})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Empty(t, instances.inserted)
	assert.False(t, fired)
}

func TestImportService_ValidateDoesNotWrite(t *testing.T) {
	svc, instances, _ := newService(t)

	res, err := svc.Validate(context.Background(), csvFile, "c.csv", importing.KindComponent, importing.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.ValidRows)
	assert.Empty(t, instances.inserted)
}
