/*
Package domain contains the core domain models of the reactor maker.

It defines the values that flow between the geometry builder, the mesh sizing planner
and the quality optimizer. This package is kept pure and free of kernel bindings,
I/O or persistence, following Hexagonal Architecture principles: kernel objects are
only ever referenced through opaque handles.

# Key Entities

  - Vector2 / Vector3: Plain coordinate values (gonum spatial vectors).
  - Shape: An opaque handle to an object owned by a kernel session.
  - ReactorGeometry: The grouped reactor + chimney solid and the dimensions used to build it.
  - ReactorMesh: The computed mesh handle and the dimensions it was built from.
  - Result: A two-case outcome (value or error) returned by every fallible facade operation.
  - BuildStage: The forward-only state machine followed by a geometry build.
*/
package domain
