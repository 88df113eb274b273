package exprlang

import "fmt"

// Context is a mapping from unique string key to Value. It supports
// two mutation primitives, Init and Update, which assign a Value as
// given. Their counterparts InitExpr and UpdateExpr evaluate the RHS
// first (§3): a raw scalar RHS is passed through unchanged, a string
// RHS is parsed and evaluated as an expression against the current
// context.
type Context struct {
	vars map[string]Value
}

// NewContext returns an empty Context.
func NewContext() *Context {
	return &Context{vars: make(map[string]Value)}
}

// Get resolves an identifier. It fails with a NameError if the key is
// absent, matching variable-resolution semantics used by the
// evaluator (§4.3).
func (c *Context) Get(key string) (Value, error) {
	v, ok := c.vars[key]
	if !ok {
		return Value{}, &NameError{Name: key}
	}
	return v, nil
}

// Has reports whether key is present, without raising an error.
func (c *Context) Has(key string) bool {
	_, ok := c.vars[key]
	return ok
}

// Init adds a new key. It fails if the key already exists.
func (c *Context) Init(key string, v Value) error {
	if _, ok := c.vars[key]; ok {
		return fmt.Errorf("context: init of existing key %q", key)
	}
	c.vars[key] = v
	return nil
}

// Update overwrites an existing key. It fails if the key is missing.
func (c *Context) Update(key string, v Value) error {
	if _, ok := c.vars[key]; !ok {
		return fmt.Errorf("context: update of missing key %q", key)
	}
	c.vars[key] = v
	return nil
}

// Set is an unconditional write, used by hosts that don't care about
// the Init/Update distinction (e.g. seeding a fresh Context).
func (c *Context) Set(key string, v Value) {
	c.vars[key] = v
}

// InitExpr evaluates rhs (as a literal Value or, if it is a String
// Value, as a compiled expression against c) and Inits key with the
// result.
func (c *Context) InitExpr(key string, rhs Value, p *Parser) error {
	v, err := c.evalRHS(rhs, p)
	if err != nil {
		return err
	}
	return c.Init(key, v)
}

// UpdateExpr is InitExpr's Update counterpart.
func (c *Context) UpdateExpr(key string, rhs Value, p *Parser) error {
	v, err := c.evalRHS(rhs, p)
	if err != nil {
		return err
	}
	return c.Update(key, v)
}

func (c *Context) evalRHS(rhs Value, p *Parser) (Value, error) {
	if rhs.Kind() != KindString {
		return rhs, nil
	}
	expr, err := p.Parse(rhs.s)
	if err != nil {
		return Value{}, err
	}
	return expr.Evaluate(c, nil)
}

// Keys returns the context's keys in unspecified order, useful for
// diagnostics and DumpStructure-adjacent tooling.
func (c *Context) Keys() []string {
	keys := make([]string, 0, len(c.vars))
	for k := range c.vars {
		keys = append(keys, k)
	}
	return keys
}

// Clone returns a shallow copy of the context, used by callers that
// want to evaluate speculatively without mutating the shared context.
func (c *Context) Clone() *Context {
	cp := make(map[string]Value, len(c.vars))
	for k, v := range c.vars {
		cp[k] = v
	}
	return &Context{vars: cp}
}
