// Package cowmap provides Map, a copy-on-write concurrent map with lock-free reads.
//
// Readers load the current generation through an atomic pointer and never block.
// Writers are serialized: every write builds a new generation from the previous
// one, applies its change and publishes it atomically. Readers holding an older
// generation keep seeing it unchanged.
//
// # Shallow duplication
//
// Values are carried from one generation to the next with ShallowCopy, never
// with a deep copy. A value type that owns mutable state (for example
// rt/cell.Cell) must return a second handle to the same state, so that both
// generations keep observing and mutating one logical value:
//
//	var m cowmap.Map[string, cell.Cell[int]]
//	c, _ := m.GetOrInsert("k", func() cell.Cell[int] { return cell.New(0) })
//	m.Insert("other", cell.New(1)) // publishes a new generation
//	_ = c.MeasureAndReplace(inc)   // still visible through m.Get("k")
//
// Writes copy the whole map, so Map suits read-mostly workloads where the key set
// changes rarely and per-key state changes through the values themselves.
//
// The zero value is ready to use.
package cowmap
