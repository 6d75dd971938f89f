package merge

import "github.com/wudi/img2pdf/ir/raw"

// Remap returns a deep copy of obj with every reference translated through
// m. Byte slices are copied, so the result shares no memory with obj. A
// reference missing from m yields a *DanglingReferenceError naming the
// target; Source and From are left for the caller to fill in.
func Remap(obj raw.Object, m Mapping) (raw.Object, error) {
	switch v := obj.(type) {
	case raw.RefObj:
		target, ok := m[v.R]
		if !ok {
			return nil, &DanglingReferenceError{Target: v.R}
		}
		return raw.RefTo(target), nil
	case *raw.ArrayObj:
		items := make([]raw.Object, len(v.Items))
		for i, item := range v.Items {
			c, err := Remap(item, m)
			if err != nil {
				return nil, err
			}
			items[i] = c
		}
		return &raw.ArrayObj{Items: items}, nil
	case *raw.DictObj:
		return remapDict(v, m)
	case *raw.StreamObj:
		dict, err := remapDict(v.Dict, m)
		if err != nil {
			return nil, err
		}
		return raw.NewStream(dict, append([]byte(nil), v.Data...)), nil
	case raw.StringObj:
		return raw.StringObj{Bytes: append([]byte(nil), v.Bytes...), Hex: v.Hex}, nil
	}
	// names, numbers, booleans and null are immutable values
	return obj, nil
}

func remapDict(d *raw.DictObj, m Mapping) (*raw.DictObj, error) {
	out := raw.Dict()
	if d == nil {
		return out, nil
	}
	for _, k := range d.SortedKeys() {
		c, err := Remap(d.KV[k], m)
		if err != nil {
			return nil, err
		}
		out.KV[k] = c
	}
	return out, nil
}
