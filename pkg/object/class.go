package object

// Class is a user-defined type: an optional parent and a method table.
// Per spec §3/§9, inheritance is "copy-down" — ClassExtend snapshots the
// parent's method table into the subclass at `extends` time — and a
// `SuperClass` chain is kept as well, for the `is` check and GC marking.
// `super.m()` looks m up in the named superclass's own (flattened) table.
type Class struct {
	Name       string
	SuperClass *Class
	Methods    map[string]*Closure
	FieldOrder []string // declared instance variable names, informational

	marked bool
}

func NewClass(name string) *Class {
	return &Class{Name: name, Methods: make(map[string]*Closure)}
}

// Extend seeds c's method table with a copy of parent's entries (copy-down
// inheritance, spec §3) and records parent as the super-chain head.
func (c *Class) Extend(parent *Class) {
	c.SuperClass = parent
	for name, m := range parent.Methods {
		c.Methods[name] = m
	}
}

// AddMethod installs (or overwrites) a method by name.
func (c *Class) AddMethod(name string, m *Closure) {
	c.Methods[name] = m
}

// Lookup returns the method bound to name, searching c's own table (which,
// thanks to copy-down, already contains inherited entries unless
// overridden after the fact — spec §9's documented limitation).
func (c *Class) Lookup(name string) (*Closure, bool) {
	m, ok := c.Methods[name]
	return m, ok
}

// LookupFromSuper walks the explicit super-chain starting at c and returns
// the first class on it whose own Methods table holds name. The VM's
// `super.m()` dispatch does not use it; it calls Lookup on the superclass.
func (c *Class) LookupFromSuper(name string) (*Closure, *Class, bool) {
	for cur := c; cur != nil; cur = cur.SuperClass {
		if m, ok := cur.Methods[name]; ok {
			return m, cur, true
		}
	}
	return nil, nil, false
}

func (c *Class) Marked() bool     { return c.marked }
func (c *Class) SetMarked(m bool) { c.marked = m }

// Instance is a live object: a class pointer and its own field storage
// (spec §3).
type Instance struct {
	Class  *Class
	Fields map[string]Value

	marked bool
}

func NewInstance(class *Class) *Instance {
	return &Instance{Class: class, Fields: make(map[string]Value)}
}

func (i *Instance) Marked() bool     { return i.marked }
func (i *Instance) SetMarked(m bool) { i.marked = m }
