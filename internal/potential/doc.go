// Package potential implements the concrete physics nodes: harmonic
// bond, angle and dihedral springs, group centroids, and the smooth
// hydrogen-bond counter. Every node registers itself with the engine's
// creation registry at init time under its name prefix.
package potential
