package tree

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/vanderheijden86/modeltree/pkg/document"
	"github.com/vanderheijden86/modeltree/pkg/modelpath"
)

func sampleDoc() *document.Document {
	return document.MustNew(document.Object{
		{Key: "x", Value: 42},
		{Key: "y", Value: "42"},
		{Key: "z", Value: document.Object{{Key: "w", Value: 42}}},
		{Key: "list", Value: []any{"a", "b", "c"}},
	})
}

// mirrors reports the first difference between the subtree at id and elem.
func mirrors(m *Model, id NodeID, elem *document.Element) error {
	if !m.Contains(id) {
		return fmt.Errorf("%s at %s is not live", id, elem.Path())
	}
	if m.Element(id) != elem {
		return fmt.Errorf("%s mirrors element %d, want %d", elem.Path(), m.Element(id).ID(), elem.ID())
	}
	if m.Kind(id) != elem.Kind() {
		return fmt.Errorf("%s kind %s, want %s", elem.Path(), m.Kind(id), elem.Kind())
	}
	if !elem.Kind().IsContainer() && m.Text(id) != elem.Text() {
		return fmt.Errorf("%s text %q, want %q", elem.Path(), m.Text(id), elem.Text())
	}
	if m.Size(id) != elem.Size() {
		return fmt.Errorf("%s size %d, want %d", elem.Path(), m.Size(id), elem.Size())
	}
	var err error
	i := 0
	children := m.Children(id)
	elem.ForEach(func(seg modelpath.Segment, child *document.Element) {
		if err != nil {
			return
		}
		if got, ok := m.Segment(children[i]); !ok || got != seg {
			err = fmt.Errorf("%s child %d stored under %s, want %s", elem.Path(), i, got, seg)
			return
		}
		if p, _ := m.Parent(children[i]); p != id {
			err = fmt.Errorf("%s child %d has parent %s, want %s", elem.Path(), i, p, id)
			return
		}
		err = mirrors(m, children[i], child)
		i++
	})
	return err
}

func mustNode(t *testing.T, m *Model, parts ...any) NodeID {
	t.Helper()
	id, err := m.NodeAtPath(modelpath.New(parts...))
	if err != nil {
		t.Fatalf("NodeAtPath(%v): %v", parts, err)
	}
	return id
}

func TestNewMirrorsDocument(t *testing.T) {
	d := sampleDoc()
	m := New(d)

	if err := mirrors(m, m.Root(), d.Root()); err != nil {
		t.Fatal(err)
	}
	if m.Len() != 9 {
		t.Errorf("expected 9 nodes, got %d", m.Len())
	}
	w := mustNode(t, m, "z", "w")
	if got := m.Path(w).String(); got != "z.w" {
		t.Errorf("expected path z.w, got %s", got)
	}
	if m.Text(w) != "42" {
		t.Errorf("expected text 42, got %q", m.Text(w))
	}
	if !m.Expanded(m.Root()) || m.Expanded(mustNode(t, m, "z")) {
		t.Error("expected only the root to start expanded")
	}
}

func TestNodeAtPathErrors(t *testing.T) {
	m := New(sampleDoc())
	for _, p := range []modelpath.Path{
		modelpath.New("missing"),
		modelpath.New("list", 3),
		modelpath.New("list", "a"),
		modelpath.New(0),
		modelpath.New("x", "deeper"),
	} {
		if _, err := m.NodeAtPath(p); !errors.Is(err, ErrPathResolution) {
			t.Errorf("NodeAtPath(%s): expected ErrPathResolution, got %v", p, err)
		}
	}
	if id, err := m.NodeAtPath(modelpath.Root); err != nil || id != m.Root() {
		t.Errorf("expected root for empty path, got %s %v", id, err)
	}
}

func TestSelectInvalidKeepsSelection(t *testing.T) {
	d := sampleDoc()
	m := New(d)
	x := mustNode(t, m, "x")
	if err := m.Select(x); err != nil {
		t.Fatal(err)
	}

	z := mustNode(t, m, "z")
	if err := d.Remove(modelpath.New("z")); err != nil {
		t.Fatal(err)
	}
	if err := m.Select(z); !errors.Is(err, ErrInvalidSelection) {
		t.Errorf("expected ErrInvalidSelection for removed node, got %v", err)
	}
	if sel, ok := m.Selection(); !ok || sel != x {
		t.Errorf("expected selection to stay on x, got %s %v", sel, ok)
	}
	if !m.IsSelected(x) || m.IsSelected(m.Root()) {
		t.Error("expected exactly x to be flagged selected")
	}
}

func TestDeleteSelectedRepairsSelection(t *testing.T) {
	d := sampleDoc()
	m := New(d)
	z := mustNode(t, m, "z")
	w := mustNode(t, m, "z", "w")
	_ = m.Select(w)

	if err := d.Remove(modelpath.New("z")); err != nil {
		t.Fatal(err)
	}
	if m.Contains(z) || m.Contains(w) {
		t.Fatal("expected removed subtree to leave the tree")
	}
	if sel, ok := m.Selection(); !ok || sel != m.Root() {
		t.Errorf("expected selection to fall back to root, got %s %v", sel, ok)
	}

	list := mustNode(t, m, "list")
	_ = m.Select(list)
	if err := m.DeleteSelectedNode(); err != nil {
		t.Fatal(err)
	}
	if err := mirrors(m, m.Root(), d.Root()); err != nil {
		t.Fatal(err)
	}
	if sel, _ := m.Selection(); sel != m.Root() {
		t.Errorf("expected root selected after deleting list, got %s", sel)
	}
}

func TestDeleteSiblingKeepsSelection(t *testing.T) {
	for _, deferred := range []bool{false, true} {
		d := sampleDoc()
		d.SetDeferred(deferred)
		m := New(d)
		x := mustNode(t, m, "x")
		if err := m.Select(x); err != nil {
			t.Fatal(err)
		}

		if err := d.Remove(modelpath.New("y")); err != nil {
			t.Fatal(err)
		}
		d.Flush()

		if _, err := m.NodeAtPath(modelpath.New("y")); !errors.Is(err, ErrPathResolution) {
			t.Errorf("deferred=%v: expected y gone, got %v", deferred, err)
		}
		if sel, ok := m.Selection(); !ok || sel != x {
			t.Errorf("deferred=%v: expected x still selected, got %s %v", deferred, sel, ok)
		}
		if !m.IsSelected(x) {
			t.Errorf("deferred=%v: expected x flagged selected", deferred)
		}
	}
}

func TestDeleteIsDeferredUntilEvent(t *testing.T) {
	d := sampleDoc()
	d.SetDeferred(true)
	m := New(d)
	z := mustNode(t, m, "z")
	_ = m.Select(z)

	if err := m.DeleteSelectedNode(); err != nil {
		t.Fatal(err)
	}
	if !m.Contains(z) {
		t.Fatal("expected z to stay until the removal is delivered")
	}
	if _, err := d.Lookup(modelpath.New("z")); err == nil {
		t.Fatal("expected document to have removed z")
	}
	// Deleting again targets an element the document no longer has.
	if err := m.DeleteSelectedNode(); !errors.Is(err, ErrPathResolution) {
		t.Errorf("expected ErrPathResolution for in-flight removal, got %v", err)
	}

	d.Flush()
	if m.Contains(z) {
		t.Error("expected z removed after flush")
	}
	if err := mirrors(m, m.Root(), d.Root()); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteRejections(t *testing.T) {
	d := sampleDoc()
	m := New(d)

	if err := m.DeleteSelectedNode(); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("expected ErrInvalidOperation without selection, got %v", err)
	}
	_ = m.Select(m.Root())
	if err := m.DeleteSelectedNode(); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("expected ErrInvalidOperation for root, got %v", err)
	}
	_ = m.Select(mustNode(t, m, "x"))
	_ = m.SetMode(ModeView)
	if err := m.DeleteSelectedNode(); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("expected ErrInvalidOperation in view mode, got %v", err)
	}
	if _, err := d.Lookup(modelpath.New("x")); err != nil {
		t.Errorf("expected x untouched, got %v", err)
	}
}

func TestAddToObjectSelectsNewChild(t *testing.T) {
	d := sampleDoc()
	m := New(d)
	_ = m.Select(m.Root())

	if err := m.AddToSelectedNode(document.KindString); err != nil {
		t.Fatal(err)
	}
	if m.IsAddingNode() {
		t.Error("expected synchronous creation to leave the adding state")
	}
	sel, _ := m.Selection()
	if got := m.Path(sel).String(); got != "new" {
		t.Errorf("expected new child selected, got %s", got)
	}
	if m.Kind(sel) != document.KindString {
		t.Errorf("expected string child, got %s", m.Kind(sel))
	}

	_ = m.Select(m.Root())
	if err := m.AddToSelectedNode(document.KindObject); err != nil {
		t.Fatal(err)
	}
	sel, _ = m.Selection()
	if got := m.Path(sel).String(); got != "new1" {
		t.Errorf("expected second child under new1, got %s", got)
	}
}

func TestAddToArrayWhileDeferred(t *testing.T) {
	d := sampleDoc()
	d.SetDeferred(true)
	m := New(d)
	list := mustNode(t, m, "list")
	_ = m.Select(list)

	notified := 0
	m.Subscribe(func() { notified++ })

	if err := m.AddToSelectedNode(document.KindNumber); err != nil {
		t.Fatal(err)
	}
	if !m.IsAddingNode() {
		t.Fatal("expected adding state until the creation event arrives")
	}
	if container, kind, ok := m.AddingTarget(); !ok || container != list || kind != document.KindNumber {
		t.Errorf("expected pending number under list, got %s %s %v", container, kind, ok)
	}
	if notified != 1 {
		t.Errorf("expected one notification for entering adding, got %d", notified)
	}
	if err := m.AddToSelectedNode(document.KindNumber); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("expected re-entrant add to fail, got %v", err)
	}
	if err := m.DeleteSelectedNode(); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("expected delete while adding to fail, got %v", err)
	}

	d.Flush()
	if m.IsAddingNode() {
		t.Error("expected adding state cleared by creation event")
	}
	sel, _ := m.Selection()
	if got := m.Path(sel).String(); got != "list[3]" {
		t.Errorf("expected list[3] selected, got %s", got)
	}
	if m.Text(sel) != "0" {
		t.Errorf("expected zero number, got %q", m.Text(sel))
	}
}

func TestAddRejections(t *testing.T) {
	m := New(sampleDoc())
	if err := m.AddToSelectedNode(document.KindNull); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("expected ErrInvalidOperation without selection, got %v", err)
	}
	_ = m.Select(mustNode(t, m, "x"))
	if err := m.AddToSelectedNode(document.KindNull); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("expected ErrInvalidOperation on a value node, got %v", err)
	}
	if m.IsAddingNode() {
		t.Error("expected no adding state after a rejected add")
	}
}

func TestCancelAdd(t *testing.T) {
	d := sampleDoc()
	d.SetDeferred(true)
	m := New(d)
	z := mustNode(t, m, "z")
	_ = m.Select(z)

	if err := m.AddToSelectedNode(document.KindBoolean); err != nil {
		t.Fatal(err)
	}
	m.CancelAdd()
	if m.IsAddingNode() {
		t.Fatal("expected adding cleared by cancel")
	}
	d.Flush()
	if sel, _ := m.Selection(); sel != z {
		t.Errorf("expected cancelled add to leave the container selected, got %s", sel)
	}
	if _, err := m.NodeAtPath(modelpath.New("z", "new")); err != nil {
		t.Errorf("expected late creation to still appear in the tree: %v", err)
	}
}

func TestAddContainerRemovedWhilePending(t *testing.T) {
	d := sampleDoc()
	d.SetDeferred(true)
	m := New(d)
	_ = m.Select(mustNode(t, m, "z"))

	if err := m.AddToSelectedNode(document.KindString); err != nil {
		t.Fatal(err)
	}
	if err := d.Remove(modelpath.New("z")); err != nil {
		t.Fatal(err)
	}
	d.Flush()
	if m.IsAddingNode() {
		t.Error("expected adding cleared when its container disappears")
	}
	if sel, _ := m.Selection(); sel != m.Root() {
		t.Errorf("expected root selected, got %s", sel)
	}
	if err := mirrors(m, m.Root(), d.Root()); err != nil {
		t.Fatal(err)
	}
}

func TestRenameKeepsNodeAndPosition(t *testing.T) {
	d := sampleDoc()
	m := New(d)
	y := mustNode(t, m, "y")
	_ = m.Select(y)

	if err := m.RenameSelectedKey("why"); err != nil {
		t.Fatal(err)
	}
	if sel, _ := m.Selection(); sel != y {
		t.Errorf("expected renamed node to stay selected, got %s", sel)
	}
	if got := m.Path(y).String(); got != "why" {
		t.Errorf("expected path why, got %s", got)
	}
	var keys []string
	m.ForEach(m.Root(), func(seg modelpath.Segment, _ NodeID) { keys = append(keys, seg.Key()) })
	if want := []string{"x", "why", "z", "list"}; !reflect.DeepEqual(keys, want) {
		t.Errorf("expected keys %v, got %v", want, keys)
	}

	_ = m.Select(mustNode(t, m, "list", 0))
	if err := m.RenameSelectedKey("k"); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("expected array element rename to fail, got %v", err)
	}
}

func TestReplaceRebuildsChildren(t *testing.T) {
	d := sampleDoc()
	m := New(d)
	z := mustNode(t, m, "z")
	w := mustNode(t, m, "z", "w")
	_ = m.SetExpanded(z, true)
	_ = m.Select(z)

	if err := m.SetSelectedValue([]any{1, 2}); err != nil {
		t.Fatal(err)
	}
	if !m.Contains(z) || m.Kind(z) != document.KindArray || m.Size(z) != 2 {
		t.Fatalf("expected z to become a 2-item array in place, got %s size %d", m.Kind(z), m.Size(z))
	}
	if m.Contains(w) {
		t.Error("expected old children discarded")
	}
	if !m.Expanded(z) {
		t.Error("expected replaced container to keep its own expansion")
	}

	x := mustNode(t, m, "x")
	if err := d.Replace(modelpath.New("x"), "text"); err != nil {
		t.Fatal(err)
	}
	if m.Kind(x) != document.KindString || m.Text(x) != "text" {
		t.Errorf("expected scalar replaced in place, got %s %q", m.Kind(x), m.Text(x))
	}
}

func TestDeferredReplaceKeepsScalarUntilDelivered(t *testing.T) {
	d := sampleDoc()
	d.SetDeferred(true)
	m := New(d)
	x := mustNode(t, m, "x")
	rev := m.Revision()

	if err := d.Replace(modelpath.New("x"), "x42"); err != nil {
		t.Fatal(err)
	}
	if m.Kind(x) != document.KindNumber || m.Text(x) != "42" {
		t.Errorf("expected number 42 before delivery, got %s %q", m.Kind(x), m.Text(x))
	}
	if m.Revision() != rev {
		t.Errorf("expected revision %d before delivery, got %d", rev, m.Revision())
	}

	d.Flush()
	if m.Kind(x) != document.KindString || m.Text(x) != "x42" {
		t.Errorf("expected string x42 after delivery, got %s %q", m.Kind(x), m.Text(x))
	}
	if err := mirrors(m, m.Root(), d.Root()); err != nil {
		t.Fatal(err)
	}
}

func TestLateCreationEventsReconcile(t *testing.T) {
	d := sampleDoc()
	d.SetDeferred(true)
	m := New(d)

	_ = d.Set(modelpath.New("a"), []any{})
	_ = d.Insert(modelpath.New("a"), 0, 1)
	_ = d.Insert(modelpath.New("a"), 0, 2)
	_ = d.Remove(modelpath.New("list", 0))
	_ = d.Move(modelpath.New("list"), 0, 1)
	d.Flush()

	if err := mirrors(m, m.Root(), d.Root()); err != nil {
		t.Fatal(err)
	}
}

func TestStaleEventsTriggerRebuild(t *testing.T) {
	d := sampleDoc()
	d.SetDeferred(true)
	m := New(d)
	first := mustNode(t, m, "list", 0)

	_ = d.Set(modelpath.New("list"), []any{"p", "q"})
	_ = d.Set(modelpath.New("list", 1), "r")
	_ = d.Remove(modelpath.New("list", 0))
	d.Flush()

	if err := mirrors(m, m.Root(), d.Root()); err != nil {
		t.Fatal(err)
	}
	if m.Contains(first) {
		t.Error("expected the replaced list's children to be gone")
	}
}

func TestNotificationsCoalesce(t *testing.T) {
	d := sampleDoc()
	m := New(d)
	calls := 0
	sub := m.Subscribe(func() { calls++ })
	m.Subscribe(func() { panic("boom") })

	err := d.Batch(func() error {
		_ = d.Remove(modelpath.New("x"))
		_ = d.Remove(modelpath.New("y"))
		return d.Append(modelpath.New("list"), "d")
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected one notification per delivery, got %d", calls)
	}

	_ = m.Select(m.Root())
	_ = m.Select(m.Root())
	if calls != 2 {
		t.Errorf("expected repeated selection to notify once, got %d", calls)
	}

	sub.Dispose()
	m.ExpandAll()
	if calls != 2 {
		t.Errorf("expected no calls after dispose, got %d", calls)
	}
}

func TestStreamSignals(t *testing.T) {
	m := New(sampleDoc())
	s := m.Events()

	m.ExpandAll()
	m.CollapseAll()
	select {
	case <-s.C():
	default:
		t.Fatal("expected a pending signal")
	}
	select {
	case <-s.C():
		t.Fatal("expected signals to coalesce")
	default:
	}

	s.Close()
	if _, ok := <-s.C(); ok {
		t.Error("expected closed channel")
	}
	m.ExpandAll()
}

func TestChangesSince(t *testing.T) {
	d := sampleDoc()
	m := New(d)
	start := m.Revision()

	_ = d.Set(modelpath.New("z", "v"), 1)
	_ = d.Replace(modelpath.New("x"), 7)

	touched, full := m.ChangesSince(start)
	if full {
		t.Fatal("expected incremental changes")
	}
	want := map[NodeID]bool{mustNode(t, m, "z"): true, mustNode(t, m, "x"): true}
	if len(touched) != 2 || !want[touched[0]] || !want[touched[1]] {
		t.Errorf("expected z and x touched, got %v", touched)
	}
	if touched, full := m.ChangesSince(m.Revision()); touched != nil || full {
		t.Errorf("expected nothing since current revision, got %v %v", touched, full)
	}
}

func TestExpandCollapseAndVisible(t *testing.T) {
	m := New(sampleDoc())
	if got := len(m.VisibleNodes()); got != 5 {
		t.Errorf("expected root and 4 children visible, got %d", got)
	}

	m.ExpandAll()
	first := m.ExpansionState()
	m.ExpandAll()
	if !reflect.DeepEqual(first, m.ExpansionState()) {
		t.Error("expected ExpandAll to be idempotent")
	}
	if got := len(m.VisibleNodes()); got != m.Len() {
		t.Errorf("expected all %d nodes visible, got %d", m.Len(), got)
	}

	m.CollapseAll()
	if got := len(m.VisibleNodes()); got != 1 {
		t.Errorf("expected only root visible, got %d", got)
	}

	w := mustNode(t, m, "z", "w")
	m.ExpandPathTo(w)
	visible := m.VisibleNodes()
	if visible[len(visible)-1] != mustNode(t, m, "list") {
		t.Errorf("expected list last among visible nodes, got %v", visible)
	}
	found := false
	for _, id := range visible {
		found = found || id == w
	}
	if !found {
		t.Error("expected z.w visible after ExpandPathTo")
	}
	if err := m.SetExpanded(w, true); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("expected expanding a value node to fail, got %v", err)
	}
}

func TestModeSwitch(t *testing.T) {
	d := sampleDoc()
	d.SetDeferred(true)
	m := New(d, WithMode(ModeView))
	_ = m.Select(m.Root())
	if err := m.AddToSelectedNode(document.KindNull); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("expected add to fail in view mode, got %v", err)
	}
	if err := m.SetMode(ModeEdit); err != nil {
		t.Fatal(err)
	}
	if err := m.AddToSelectedNode(document.KindNull); err != nil {
		t.Fatal(err)
	}
	if err := m.SetMode(ModeView); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("expected mode switch while adding to fail, got %v", err)
	}
	if mode, err := ParseMode("view"); err != nil || mode != ModeView {
		t.Errorf("expected view mode, got %s %v", mode, err)
	}
	if _, err := ParseMode("bogus"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
