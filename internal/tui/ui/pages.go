package ui

import "github.com/rivo/tview"

// Pages is a navigation stack of registered Page screens.
type Pages struct {
	*tview.Pages
	registered map[string]Page
	stack      []string
	onChange   func(current string, labels []string)
}

// NewPages creates an empty page stack.
func NewPages() *Pages {
	return &Pages{
		Pages:      tview.NewPages(),
		registered: make(map[string]Page),
	}
}

// Register adds p, hidden, under p.Name().
func (p *Pages) Register(pages ...Page) {
	for _, pg := range pages {
		p.registered[pg.Name()] = pg
		p.AddPage(pg.Name(), pg, true, false)
	}
}

// SetOnChange sets a callback fired with the top page and the crumb labels
// whenever the stack changes or Refresh is called.
func (p *Pages) SetOnChange(fn func(current string, labels []string)) {
	p.onChange = fn
}

// Push shows name on top of the stack. Pushing the current page is a no-op.
func (p *Pages) Push(name string) {
	if _, ok := p.registered[name]; !ok || p.Current() == name {
		return
	}
	if len(p.stack) > 0 {
		p.HidePage(p.Current())
	}
	p.stack = append(p.stack, name)
	p.show(name)
}

// Pop removes the top page unless it is the root, and returns its name.
func (p *Pages) Pop() string {
	if len(p.stack) <= 1 {
		return ""
	}
	top := p.Current()
	p.HidePage(top)
	p.stack = p.stack[:len(p.stack)-1]
	p.show(p.Current())
	return top
}

// PopTo pops until name is on top. It reports false, leaving the stack
// alone, when name is not on the stack.
func (p *Pages) PopTo(name string) bool {
	i := p.index(name)
	if i < 0 {
		return false
	}
	if i == len(p.stack)-1 {
		return true
	}
	p.HidePage(p.Current())
	p.stack = p.stack[:i+1]
	p.show(name)
	return true
}

// Remove drops name from anywhere in the stack. The root page stays.
func (p *Pages) Remove(name string) {
	i := p.index(name)
	if i <= 0 {
		return
	}
	if i == len(p.stack)-1 {
		p.Pop()
		return
	}
	p.stack = append(p.stack[:i], p.stack[i+1:]...)
	p.notify()
}

// Current returns the top page name.
func (p *Pages) Current() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// Focus returns the focus target of the top page.
func (p *Pages) Focus() tview.Primitive {
	if pg, ok := p.registered[p.Current()]; ok {
		return pg.FocusTarget()
	}
	return p.Pages
}

// Depth returns the stack depth.
func (p *Pages) Depth() int {
	return len(p.stack)
}

// Reset clears the stack down to name alone.
func (p *Pages) Reset(name string) {
	for _, n := range p.stack {
		p.HidePage(n)
	}
	p.stack = []string{name}
	p.show(name)
}

// Refresh re-reads the labels, e.g. after the open contact changed.
func (p *Pages) Refresh() {
	p.notify()
}

// Labels returns the crumb trail, root first.
func (p *Pages) Labels() []string {
	labels := make([]string, 0, len(p.stack))
	for _, n := range p.stack {
		labels = append(labels, p.registered[n].Label())
	}
	return labels
}

func (p *Pages) show(name string) {
	p.ShowPage(name)
	p.SendToFront(name)
	p.notify()
}

func (p *Pages) index(name string) int {
	for i, n := range p.stack {
		if n == name {
			return i
		}
	}
	return -1
}

func (p *Pages) notify() {
	if p.onChange != nil {
		p.onChange(p.Current(), p.Labels())
	}
}
