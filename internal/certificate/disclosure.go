package certificate

// DisclosureSet is the 4-bit disclosure permission mask modelled as explicit
// capability flags, one per privacy tier. Tier L maps to bit L-1 of the wire
// mask, so 0b0010 grants tier 2 only.
type DisclosureSet struct {
	Basic      bool `json:"basic"`      // tier 1: existence only
	Standard   bool `json:"standard"`   // tier 2: validity window
	Healthcare bool `json:"healthcare"` // tier 3: clinical verifiers
	Emergency  bool `json:"emergency"`  // tier 4: emergency responders
}

// DisclosureFromBits decodes a wire mask in [0,15].
func DisclosureFromBits(mask int) DisclosureSet {
	return DisclosureSet{
		Basic:      mask&(1<<0) != 0,
		Standard:   mask&(1<<1) != 0,
		Healthcare: mask&(1<<2) != 0,
		Emergency:  mask&(1<<3) != 0,
	}
}

// Bits encodes the set back to its wire mask.
func (d DisclosureSet) Bits() int {
	mask := 0
	if d.Basic {
		mask |= 1 << 0
	}
	if d.Standard {
		mask |= 1 << 1
	}
	if d.Healthcare {
		mask |= 1 << 2
	}
	if d.Emergency {
		mask |= 1 << 3
	}
	return mask
}

// Allows reports whether disclosure tier level (1-4) is granted. Only the
// exact tier bit is consulted; a higher grant never implies a lower one.
func (d DisclosureSet) Allows(level int) bool {
	switch level {
	case 1:
		return d.Basic
	case 2:
		return d.Standard
	case 3:
		return d.Healthcare
	case 4:
		return d.Emergency
	default:
		return false
	}
}

// Grant returns a copy with tier level enabled.
func (d DisclosureSet) Grant(level int) DisclosureSet {
	switch level {
	case 1:
		d.Basic = true
	case 2:
		d.Standard = true
	case 3:
		d.Healthcare = true
	case 4:
		d.Emergency = true
	}
	return d
}
