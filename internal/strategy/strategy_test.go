package strategy

import (
	"errors"
	"testing"

	"github.com/wangchao9206/ai-quant/internal/domain"
)

// stubStrategy is a minimal Strategy implementation used in catalog and
// validation tests.
type stubStrategy struct {
	name    string
	params  []string
	initErr error
}

func (s *stubStrategy) Name() string                              { return s.name }
func (s *stubStrategy) ParamNames() []string                      { return s.params }
func (s *stubStrategy) Init(_ domain.StrategyParameters) error    { return s.initErr }
func (s *stubStrategy) OnBar(_ Env) (domain.OrderIntent, error)   { return domain.OrderIntent{}, nil }

func TestCatalogResolveBuiltin(t *testing.T) {
	c := NewCatalog()
	c.Register("stub", func() Strategy { return &stubStrategy{name: "stub", params: []string{"fast_period"}} })

	s, err := c.Resolve(Spec{Name: "stub"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.Name() != "stub" {
		t.Errorf("resolved strategy name = %q, want stub", s.Name())
	}
}

func TestCatalogResolveUnknown(t *testing.T) {
	c := NewCatalog()

	_, err := c.Resolve(Spec{Name: "nope"})
	if err == nil {
		t.Fatal("Resolve returned nil error for unknown strategy")
	}
	var iserr *domain.InvalidStrategyError
	if !errors.As(err, &iserr) {
		t.Fatalf("Resolve returned %T, want *InvalidStrategyError", err)
	}
}

func TestCatalogResolveRulesWithoutBuilder(t *testing.T) {
	c := NewCatalog()
	_, err := c.Resolve(Spec{Rules: &RuleDefinition{Name: "custom"}})
	var iserr *domain.InvalidStrategyError
	if !errors.As(err, &iserr) {
		t.Fatalf("Resolve without rule builder returned %T, want *InvalidStrategyError", err)
	}
}

func TestCatalogList(t *testing.T) {
	c := NewCatalog()
	c.Register("zeta", func() Strategy { return &stubStrategy{name: "zeta"} })
	c.Register("alpha", func() Strategy { return &stubStrategy{name: "alpha"} })

	names := c.List()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Errorf("List = %v, want [alpha zeta]", names)
	}
}

func TestValidateParamIntersection(t *testing.T) {
	p := domain.DefaultParameters()

	ok := &stubStrategy{name: "ok", params: []string{"fast_period", "made_up"}}
	if err := Validate(ok, p); err != nil {
		t.Errorf("Validate rejected strategy with one recognised parameter: %v", err)
	}

	none := &stubStrategy{name: "none", params: []string{"made_up", "also_fake"}}
	err := Validate(none, p)
	var iserr *domain.InvalidStrategyError
	if !errors.As(err, &iserr) {
		t.Fatalf("Validate returned %T, want *InvalidStrategyError", err)
	}
}

func TestValidateInitFailure(t *testing.T) {
	s := &stubStrategy{
		name:    "broken",
		params:  []string{"fast_period"},
		initErr: errors.New("cannot configure"),
	}
	err := Validate(s, domain.DefaultParameters())
	var iserr *domain.InvalidStrategyError
	if !errors.As(err, &iserr) {
		t.Fatalf("Validate returned %T, want *InvalidStrategyError", err)
	}
}

func TestValidateNil(t *testing.T) {
	var iserr *domain.InvalidStrategyError
	if err := Validate(nil, domain.DefaultParameters()); !errors.As(err, &iserr) {
		t.Error("Validate(nil) should return *InvalidStrategyError")
	}
}
