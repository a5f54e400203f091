// Package chain is an ordered, named list of filters attached to one
// session. It drives the lifecycle registry in protocol order for every
// structural change:
//
//	add:    InitIfNecessary, OnPreAdd, link, OnPostAdd
//	remove: OnPreRemove, unlink, OnPostRemove, DestroyIfNecessary
//
// A failed add leaves the chain unchanged and destroys the filter again if
// no other chain holds it.
//
//	c := chain.New(registry, chain.WithName("inbound"))
//	if err := c.AddLast(ctx, "log", loggingFilter); err != nil { ... }
//	defer c.Clear(ctx)
//
// Filter hooks run while the chain and the registry hold their locks and
// must not modify the chain they are being added to or removed from.
package chain
