// Package adaptors holds the adaptor kinds mirroring each supported node type
// into engine objects. Register installs all of them; the node type tag alone
// selects the kind.
package adaptors
