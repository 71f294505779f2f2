package remote

import (
	"github.com/vanderheijden86/modeltree/pkg/document"
	"github.com/vanderheijden86/modeltree/pkg/modelpath"
)

// Forwarder applies edits to a local document and publishes each successful
// edit to peers. It satisfies tree.Document, so a tree built over it shares
// its user's edits.
type Forwarder struct {
	*document.Document
	client *Client
}

// NewForwarder wraps doc so its edits are published through client.
func NewForwarder(doc *document.Document, client *Client) *Forwarder {
	return &Forwarder{Document: doc, client: client}
}

func (f *Forwarder) publish(err error, op document.Op) error {
	if err == nil {
		f.client.TrySend([]document.Op{op})
	}
	return err
}

func (f *Forwarder) Set(p modelpath.Path, v any) error {
	op := document.NewOp(document.OpSet, p)
	op.Value = v
	return f.publish(f.Document.Set(p, v), op)
}

func (f *Forwarder) Remove(p modelpath.Path) error {
	return f.publish(f.Document.Remove(p), document.NewOp(document.OpRemove, p))
}

func (f *Forwarder) Rename(p modelpath.Path, newKey string) error {
	op := document.NewOp(document.OpRename, p)
	op.NewKey = newKey
	return f.publish(f.Document.Rename(p, newKey), op)
}

func (f *Forwarder) Replace(p modelpath.Path, v any) error {
	op := document.NewOp(document.OpReplace, p)
	op.Value = v
	return f.publish(f.Document.Replace(p, v), op)
}

func (f *Forwarder) Insert(p modelpath.Path, index int, v any) error {
	op := document.NewOp(document.OpInsert, p)
	op.Index, op.Value = index, v
	return f.publish(f.Document.Insert(p, index, v), op)
}

func (f *Forwarder) Move(p modelpath.Path, from, to int) error {
	op := document.NewOp(document.OpMove, p)
	op.From, op.To = from, to
	return f.publish(f.Document.Move(p, from, to), op)
}
