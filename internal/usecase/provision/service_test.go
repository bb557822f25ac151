package provision

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/docembed/internal/domain"
	"github.com/kailas-cloud/docembed/internal/domain/vector"
)

// --- Mocks ---

type mockIndexes struct {
	listFn       func(ctx context.Context) ([]string, error)
	createFn     func(ctx context.Context, d vector.IndexDescriptor) error
	descriptorFn func(ctx context.Context, d vector.IndexDescriptor) error
	listCalls    int
	createCalls  int
	descCalls    int
}

func (m *mockIndexes) ListIndexNames(ctx context.Context) ([]string, error) {
	m.listCalls++
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockIndexes) CreateIndex(ctx context.Context, d vector.IndexDescriptor) error {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, d)
	}
	return nil
}

func (m *mockIndexes) EnsureDescriptor(ctx context.Context, d vector.IndexDescriptor) error {
	m.descCalls++
	if m.descriptorFn != nil {
		return m.descriptorFn(ctx, d)
	}
	return nil
}

func descriptor() vector.IndexDescriptor {
	return vector.IndexDescriptor{Name: "docs", Dimension: 4, Metric: vector.MetricCosine}
}

// --- Tests ---

func TestEnsureIndex_CreatesWhenAbsent(t *testing.T) {
	var created vector.IndexDescriptor
	m := &mockIndexes{
		listFn: func(_ context.Context) ([]string, error) { return []string{"other"}, nil },
		createFn: func(_ context.Context, d vector.IndexDescriptor) error {
			created = d
			return nil
		},
	}

	if err := New(m, nil).EnsureIndex(context.Background(), descriptor()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.createCalls != 1 {
		t.Fatalf("expected 1 create call, got %d", m.createCalls)
	}
	if created.Region != vector.DefaultRegion {
		t.Errorf("expected defaults applied, region = %q", created.Region)
	}
}

func TestEnsureIndex_Idempotent(t *testing.T) {
	var names []string
	m := &mockIndexes{
		listFn: func(_ context.Context) ([]string, error) { return names, nil },
		createFn: func(_ context.Context, d vector.IndexDescriptor) error {
			names = append(names, d.Name)
			return nil
		},
	}
	svc := New(m, nil)

	for i := range 3 {
		if err := svc.EnsureIndex(context.Background(), descriptor()); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
	}
	if m.createCalls != 1 {
		t.Errorf("expected exactly one create, got %d", m.createCalls)
	}
	if m.descCalls != 2 {
		t.Errorf("expected descriptor checks on existing index, got %d", m.descCalls)
	}
}

func TestEnsureIndex_ExistingIndexDescriptorFailure(t *testing.T) {
	m := &mockIndexes{
		listFn: func(_ context.Context) ([]string, error) { return []string{"docs"}, nil },
		descriptorFn: func(_ context.Context, _ vector.IndexDescriptor) error {
			return domain.ErrVectorDimMismatch
		},
	}

	err := New(m, nil).EnsureIndex(context.Background(), descriptor())
	if !errors.Is(err, domain.ErrProvisioning) || !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected provisioning dimension error, got %v", err)
	}
	if m.createCalls != 0 {
		t.Error("existing index must not be recreated")
	}
}

func TestEnsureIndex_LostRaceIsSuccess(t *testing.T) {
	m := &mockIndexes{
		createFn: func(_ context.Context, _ vector.IndexDescriptor) error {
			return domain.ErrIndexExists
		},
	}
	if err := New(m, nil).EnsureIndex(context.Background(), descriptor()); err != nil {
		t.Fatalf("expected nil on lost race, got %v", err)
	}
}

func TestEnsureIndex_CreateFailure(t *testing.T) {
	boom := errors.New("out of memory")
	m := &mockIndexes{
		createFn: func(_ context.Context, _ vector.IndexDescriptor) error { return boom },
	}

	err := New(m, nil).EnsureIndex(context.Background(), descriptor())
	var pe *domain.ProvisioningError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProvisioningError, got %v", err)
	}
	if pe.Index != "docs" {
		t.Errorf("expected index docs, got %q", pe.Index)
	}
	if !errors.Is(err, domain.ErrProvisioning) || !errors.Is(err, boom) {
		t.Errorf("error chain incomplete: %v", err)
	}
}

func TestEnsureIndex_ListFailure(t *testing.T) {
	m := &mockIndexes{
		listFn: func(_ context.Context) ([]string, error) { return nil, errors.New("conn refused") },
	}

	err := New(m, nil).EnsureIndex(context.Background(), descriptor())
	if !errors.Is(err, domain.ErrProvisioning) {
		t.Fatalf("expected ErrProvisioning, got %v", err)
	}
	if m.createCalls != 0 {
		t.Error("create must not run after a failed listing")
	}
}

func TestEnsureIndex_InvalidDescriptorMakesNoCalls(t *testing.T) {
	cases := []vector.IndexDescriptor{
		{Name: "bad name"},
		{Name: "docs", Dimension: -1},
		{Name: "docs", Metric: "manhattan"},
	}
	for _, d := range cases {
		m := &mockIndexes{}
		err := New(m, nil).EnsureIndex(context.Background(), d)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("%+v: expected ErrInvalidInput, got %v", d, err)
		}
		if m.listCalls+m.createCalls+m.descCalls != 0 {
			t.Errorf("%+v: expected no index calls", d)
		}
	}
}
