package aggregate

import "sync"

// DefaultPalette is the built-in series palette.
var DefaultPalette = []string{
	"#42A5F5",
	"#66BB6A",
	"#FFA726",
	"#EF5350",
	"#7E57C2",
	"#00BCD4",
	"#FFCA28",
	"#8D6E63",
	"#EC407A",
	"#26A69A",
}

// ColorAssigner remembers the color given to each experiment id. A color,
// once assigned, never changes, so a re-uploaded log keeps the colors of
// the experiments it shares with earlier uploads. It is safe for
// concurrent use.
type ColorAssigner struct {
	mu      sync.RWMutex
	palette []string
	colors  map[string]string
	order   []string
}

// NewColorAssigner creates an assigner over palette, or DefaultPalette when
// palette is empty.
func NewColorAssigner(palette ...string) *ColorAssigner {
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	p := make([]string, len(palette))
	copy(p, palette)
	return &ColorAssigner{
		palette: p,
		colors:  make(map[string]string),
	}
}

// AssignAll gives every unseen id the palette color at its position in ids,
// wrapping around the palette. The position is within this call, not a
// running count: an unseen id first in ids always gets the first color.
func (c *ColorAssigner) AssignAll(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, id := range ids {
		if _, ok := c.colors[id]; ok {
			continue
		}
		c.colors[id] = c.palette[i%len(c.palette)]
		c.order = append(c.order, id)
	}
}

// Color returns the color of id, or "" if none was assigned.
func (c *ColorAssigner) Color(id string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.colors[id]
}

// Lookup is Color with an ok flag.
func (c *ColorAssigner) Lookup(id string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	col, ok := c.colors[id]
	return col, ok
}

// Assigned returns a copy of the id to color mapping.
func (c *ColorAssigner) Assigned() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.colors))
	for k, v := range c.colors {
		out[k] = v
	}
	return out
}

// Order returns ids in the order they were first colored.
func (c *ColorAssigner) Order() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// Len returns the number of colored ids.
func (c *ColorAssigner) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.colors)
}

// Palette returns a copy of the palette.
func (c *ColorAssigner) Palette() []string {
	return append([]string(nil), c.palette...)
}
