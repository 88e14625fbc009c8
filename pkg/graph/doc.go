// Package graph defines the scene graph produced by evaluating a scene
// script. The graph is an immutable DAG of solids, transforms, point
// sources and samplers, rooted at named clouds. Each cloud becomes one
// point set for surface reconstruction.
package graph
