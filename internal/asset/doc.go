/*
Package asset holds the building blocks of the asset content cache: the immutable
Content payload, the lazy FileReader, the Loader that turns a key into a Handle,
and the reference-counted Handle itself.

# Handles

A Handle is a shared reference to one load result. All handles cloned from the same
origin share a name, a Content (nil when the load failed), a reference counter and an
idle timestamp. Go has no copy constructors, so the protocol is explicit:

	h := loader.Load("textures/grass.png") // refcount 1
	c := h.Clone()                          // refcount 2, idle cleared
	c.Release()                             // refcount 1, idle marked
	h.Release()                             // refcount 0, shared state freed

Assigning a Handle with = creates an untracked alias. Use Clone for a counted copy
and Move to transfer ownership.

A refcount of exactly 1 conventionally means only the owning cache still holds the
handle, which is what IdleDuration reports on.
*/
package asset
