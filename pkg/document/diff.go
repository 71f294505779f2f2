package document

import (
	"github.com/vanderheijden86/modeltree/pkg/modelpath"
)

// Diff returns the ops that turn current into next. Unchanged subtrees
// produce no ops, so applying the result touches only what differs:
//   - object keys missing from next are removed, new keys are set, shared
//     keys are compared recursively (key order changes are ignored)
//   - arrays are compared index by index; extra elements are appended or
//     removed from the end
//   - a kind change or a different scalar replaces the value in place
//
// Renames are never inferred.
func Diff(current *Element, next any) ([]Op, error) {
	scratch := &Document{}
	target, err := scratch.build(next, nil)
	if err != nil {
		return nil, err
	}
	var ops []Op
	diffElement(current.Path(), current, target, &ops)
	return ops, nil
}

func diffElement(p modelpath.Path, cur, next *Element, ops *[]Op) {
	if cur.kind != next.kind {
		*ops = append(*ops, replaceOp(p, next))
		return
	}
	switch cur.kind {
	case KindObject:
		for _, k := range cur.keys {
			if _, ok := next.fields[k]; !ok {
				*ops = append(*ops, NewOp(OpRemove, p.Append(modelpath.Key(k))))
			}
		}
		for _, k := range next.keys {
			child := p.Append(modelpath.Key(k))
			if existing, ok := cur.fields[k]; ok {
				diffElement(child, existing, next.fields[k], ops)
				continue
			}
			op := NewOp(OpSet, child)
			op.Value = next.fields[k].Interface()
			*ops = append(*ops, op)
		}
	case KindArray:
		shared := min(len(cur.items), len(next.items))
		for i := 0; i < shared; i++ {
			diffElement(p.Append(modelpath.Index(i)), cur.items[i], next.items[i], ops)
		}
		for i := shared; i < len(next.items); i++ {
			op := NewOp(OpInsert, p)
			op.Index = i
			op.Value = next.items[i].Interface()
			*ops = append(*ops, op)
		}
		for i := len(cur.items) - 1; i >= shared; i-- {
			*ops = append(*ops, NewOp(OpRemove, p.Append(modelpath.Index(i))))
		}
	default:
		if !sameScalar(cur, next) {
			*ops = append(*ops, replaceOp(p, next))
		}
	}
}

func replaceOp(p modelpath.Path, next *Element) Op {
	op := NewOp(OpReplace, p)
	op.Value = next.Interface()
	return op
}
