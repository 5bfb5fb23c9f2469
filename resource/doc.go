// Package resource maps guest-visible integer handles to host objects.
//
// The guest never sees host values directly. Opening a file, for example,
// stores the afero.File in a Table and hands the guest a small number:
//
//	files := resource.NewTable(64)
//	h, err := files.Insert(resource.KindFile, f)
//
//	v, ok := files.Get(h, resource.KindFile)
//	files.Remove(h) // closes f
//
// Handles are typed by Kind; looking a handle up under the wrong kind fails
// the same way a stale handle does. Handle 0 is never issued, so guests can use
// it as "no file".
//
// Observers see every create and drop, which the host uses to log leaked
// handles at shutdown.
package resource
