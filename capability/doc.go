// Package capability is the catalogue of host capabilities a guest may call.
//
// Each capability has a stable numeric ID shared with guest bytecode and a
// Convention describing how to read its call frame:
//
//	ID          arity  slots               result
//	CG_PRINT    1      ptr                 void
//	CG_FS_READ  3      ptr, int, int       void
//	CG_SIN      1      int (float32 bits)  value
//
// The table is the single source of truth for the calling convention. It is built
// once at package initialization and checked for exhaustiveness: every identifier
// in the declared blocks must either have a Convention or be retired. A gap makes
// the program fail at startup rather than fall through at run time.
//
// Retired identifiers keep their numbers so old guests degrade to the
// unknown-capability no-op instead of colliding with a reused number.
package capability
