package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atodared/deployd/internal/store"
)

func TestDomainErrorCollector(t *testing.T) {
	ctx := &Context{}
	d := newDomain(ctx, store.Document{"title": "a"}, nil)

	assert.False(t, d.HasErrors())
	d.Error("title", "bad")
	assert.True(t, d.HasErrors())
	assert.Equal(t, "bad", d.Errors()["title"])

	d.ErrorIf(false, "x", "no")
	d.ErrorUnless(true, "y", "no")
	assert.Len(t, d.Errors(), 1)

	d.ErrorIf(true, "x", "yes")
	d.ErrorUnless(false, "y", "yes")
	assert.Len(t, d.Errors(), 3)
}

func TestDomainProtectHide(t *testing.T) {
	d := newDomain(&Context{}, store.Document{"title": "a", "secret": "s", "internal": "i"}, nil)
	d.Protect("secret")
	d.Hide("internal")
	assert.Equal(t, store.Document{"title": "a"}, d.Data)
}

func TestDomainChangedOnUpdate(t *testing.T) {
	prev := store.Document{"title": "a", "votes": float64(7), "done": false}
	cur := store.Document{"title": "a", "votes": float64(9), "done": false}
	d := newDomain(&Context{}, cur, prev)

	assert.True(t, d.Changed("votes"))
	assert.False(t, d.Changed("title"))
	assert.False(t, d.Changed("done"))
	assert.False(t, d.Changed("missing"))
}

func TestDomainChangedOnCreate(t *testing.T) {
	d := newDomain(&Context{}, store.Document{"title": "a"}, nil)
	assert.True(t, d.Changed("title"))
	assert.False(t, d.Changed("votes"))
}

func TestDomainDpdPassThrough(t *testing.T) {
	handle := struct{ name string }{"client"}
	d := newDomain(&Context{Dpd: handle}, nil, nil)
	assert.Equal(t, handle, d.Dpd)
}
