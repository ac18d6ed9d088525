package shared

// Cursor describes a keyset position for restartable listings. A zero
// cursor starts from the beginning; AfterID is the last id already seen.
type Cursor struct {
	AfterID int64
	Limit   int
}

// Normalize clamps the cursor limit into a sane range.
func (c Cursor) Normalize() Cursor {
	if c.Limit <= 0 {
		c.Limit = 50
	}
	if c.Limit > 500 {
		c.Limit = 500
	}
	return c
}
