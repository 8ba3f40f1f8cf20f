// Package scheduling holds the pure time computations behind post scheduling:
// assigning recurring slots to an ordered batch and spreading deliveries that
// would otherwise fire at the same instant.
//
// Nothing here performs I/O. Callers pass the current time explicitly so the
// same functions back both the preview endpoint and registration.
package scheduling
