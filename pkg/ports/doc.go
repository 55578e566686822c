/*
Package ports defines the driven ports (interfaces) of the reactor maker.

The geometry and meshing kernels are external collaborators: the engine only
talks to them through these interfaces, so a real CAD/meshing binding, the
in-process reference kernel and test doubles are interchangeable.

# Key Interfaces

  - GeometryKernel: primitive construction, boolean partition, transforms,
    sub-shape queries, groups and export.
  - MeshKernel: mesh creation, per-edge segment hypotheses, 2-D/3-D algorithms,
    computation and per-element aspect ratios.
  - KernelSession: one independent kernel document (both kernels). Sessions are
    not safe for concurrent use.
  - SessionFactory: creates independent sessions, used for parallel optimizer trials.
  - TrialCache: memoises optimizer objective values across runs.
*/
package ports
