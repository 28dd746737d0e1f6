package column

// Widen returns the smallest type both a and b can be losslessly
// represented in.
//
// Promotion rules:
//   - same numeric kind: the wider width
//   - signed/unsigned: the signed type when it is strictly wider than the
//     unsigned one, otherwise the next wider signed type; uint64 has no
//     signed counterpart and fails
//   - integer/float: float64, or float32 when the integer is at most
//     two bytes wide (float32 holds integers exactly only up to 2^24)
//   - fixed strings: the wider fixed width; fixed/dynamic: dynamic
//   - bool only with bool
//
// Any other pairing fails with *IncompatibleTypesError.
func Widen(a, b Type) (Type, error) {
	if a == b {
		return a, nil
	}

	switch {
	case a.IsNumeric() && b.IsNumeric():
		return widenNumeric(a, b)
	case a.IsStringLike() && b.IsStringLike():
		if a.Kind == KindString || b.Kind == KindString {
			return String(), nil
		}
		return FixedString(max(a.Width, b.Width)), nil
	}

	return Type{}, &IncompatibleTypesError{Left: a, Right: b}
}

func widenNumeric(a, b Type) (Type, error) {
	switch {
	case a.Kind == b.Kind:
		return Type{Kind: a.Kind, Width: max(a.Width, b.Width)}, nil

	case a.Kind == KindFloat || b.Kind == KindFloat:
		f, i := a, b
		if f.Kind != KindFloat {
			f, i = i, f
		}
		if f.Width == 4 && i.Width <= 2 {
			return Float(4), nil
		}
		return Float(8), nil
	}

	signed, unsigned := a, b
	if signed.Kind == KindUint {
		signed, unsigned = unsigned, signed
	}
	if unsigned.Width < signed.Width {
		return signed, nil
	}
	if unsigned.Width >= 8 {
		return Type{}, &IncompatibleTypesError{Left: a, Right: b}
	}
	return Int(unsigned.Width * 2), nil
}

// WidenAll folds Widen over types. Floating-point types are folded first
// so the result does not depend on the order the types were observed in
// (uint64 combined with a signed integer is representable once a float is
// present). It returns the zero Type for an empty list.
func WidenAll(types ...Type) (Type, error) {
	if len(types) == 0 {
		return Type{}, nil
	}

	ordered := make([]Type, 0, len(types))
	for _, t := range types {
		if t.Kind == KindFloat {
			ordered = append(ordered, t)
		}
	}
	for _, t := range types {
		if t.Kind != KindFloat {
			ordered = append(ordered, t)
		}
	}

	acc := ordered[0]
	for _, t := range ordered[1:] {
		w, err := Widen(acc, t)
		if err != nil {
			return Type{}, err
		}
		acc = w
	}
	return acc, nil
}
