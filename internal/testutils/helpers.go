package testutils

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/reactor/pkg/adapters/memory"
	"github.com/aretw0/reactor/pkg/domain"
	"github.com/aretw0/reactor/pkg/ports"
)

// NewSession opens a memory kernel session closed at the end of the test.
func NewSession(t *testing.T) *memory.Session {
	t.Helper()

	sess := memory.NewSession()
	t.Cleanup(func() {
		require.NoError(t, sess.Close(), "Failed to close kernel session")
	})
	return sess
}

// ScenarioParams are the reference dimensions used across the test suites:
// R=10, H=20, chimney 2x5, square 0.5, curvature 0.1, mesh 0.5.
func ScenarioParams() domain.GeometryParams {
	p := domain.DefaultGeometryParams()
	p.CurvatureFraction = 0.1
	return p
}

// MockKernel is a testify double of a full kernel session.
// Unexpected calls fail the test through mock's panic.
type MockKernel struct {
	mock.Mock
}

var _ ports.KernelSession = (*MockKernel)(nil)

func (m *MockKernel) shape(args mock.Arguments) (domain.Shape, error) {
	s, _ := args.Get(0).(domain.Shape)
	return s, args.Error(1)
}

func (m *MockKernel) ID() string { return "mock" }

func (m *MockKernel) Close() error { return m.Called().Error(0) }

func (m *MockKernel) Vertex(p domain.Vector3) (domain.Shape, error) {
	return m.shape(m.Called(p))
}

func (m *MockKernel) PointCoordinates(v domain.Shape) (domain.Vector3, error) {
	args := m.Called(v)
	p, _ := args.Get(0).(domain.Vector3)
	return p, args.Error(1)
}

func (m *MockKernel) Line(from, to domain.Vector3) (domain.Shape, error) {
	return m.shape(m.Called(from, to))
}

func (m *MockKernel) Arc(start, mid, end domain.Vector3) (domain.Shape, error) {
	return m.shape(m.Called(start, mid, end))
}

func (m *MockKernel) Circle(center, normal domain.Vector3, radius float64) (domain.Shape, error) {
	return m.shape(m.Called(center, normal, radius))
}

func (m *MockKernel) Wire(edges []domain.Shape) (domain.Shape, error) {
	return m.shape(m.Called(edges))
}

func (m *MockKernel) Face(wire domain.Shape) (domain.Shape, error) {
	return m.shape(m.Called(wire))
}

func (m *MockKernel) Partition(objects, tools []domain.Shape) (domain.Shape, error) {
	return m.shape(m.Called(objects, tools))
}

func (m *MockKernel) GlueFaces(s domain.Shape, tolerance float64) (domain.Shape, error) {
	return m.shape(m.Called(s, tolerance))
}

func (m *MockKernel) GlueEdges(s domain.Shape, tolerance float64) (domain.Shape, error) {
	return m.shape(m.Called(s, tolerance))
}

func (m *MockKernel) Rotate(s domain.Shape, origin, axis domain.Vector3, angle float64) (domain.Shape, error) {
	return m.shape(m.Called(s, origin, axis, angle))
}

func (m *MockKernel) Extrude(s domain.Shape, vector domain.Vector3) (domain.Shape, error) {
	return m.shape(m.Called(s, vector))
}

func (m *MockKernel) SubShapes(s domain.Shape, typ domain.ShapeType) ([]domain.Shape, error) {
	args := m.Called(s, typ)
	out, _ := args.Get(0).([]domain.Shape)
	return out, args.Error(1)
}

func (m *MockKernel) SubShapeID(main, sub domain.Shape) (int, error) {
	args := m.Called(main, sub)
	return args.Int(0), args.Error(1)
}

func (m *MockKernel) EdgeNearPoint(s domain.Shape, p domain.Vector3) (domain.Shape, error) {
	return m.shape(m.Called(s, p))
}

func (m *MockKernel) FaceNearPoint(s domain.Shape, p domain.Vector3) (domain.Shape, error) {
	return m.shape(m.Called(s, p))
}

func (m *MockKernel) ShapesOnPlane(s domain.Shape, typ domain.ShapeType, point, normal domain.Vector3) ([]int, error) {
	args := m.Called(s, typ, point, normal)
	out, _ := args.Get(0).([]int)
	return out, args.Error(1)
}

func (m *MockKernel) Length(s domain.Shape) (float64, error) {
	args := m.Called(s)
	l, _ := args.Get(0).(float64)
	return l, args.Error(1)
}

func (m *MockKernel) CheckShape(s domain.Shape) error {
	return m.Called(s).Error(0)
}

func (m *MockKernel) CreateGroup(main domain.Shape, typ domain.ShapeType, name string) (domain.Shape, error) {
	return m.shape(m.Called(main, typ, name))
}

func (m *MockKernel) UnionIDs(group domain.Shape, ids []int) error {
	return m.Called(group, ids).Error(0)
}

func (m *MockKernel) UnionList(group domain.Shape, shapes []domain.Shape) error {
	return m.Called(group, shapes).Error(0)
}

func (m *MockKernel) GroupMembers(group domain.Shape) ([]domain.Shape, error) {
	args := m.Called(group)
	out, _ := args.Get(0).([]domain.Shape)
	return out, args.Error(1)
}

func (m *MockKernel) Export(s domain.Shape, w io.Writer, format domain.ExportFormat) error {
	return m.Called(s, w, format).Error(0)
}

func (m *MockKernel) NewMesh(s domain.Shape, name string) (domain.MeshHandle, error) {
	args := m.Called(s, name)
	h, _ := args.Get(0).(domain.MeshHandle)
	return h, args.Error(1)
}

func (m *MockKernel) DefaultSegments(mesh domain.MeshHandle, count int) error {
	return m.Called(mesh, count).Error(0)
}

func (m *MockKernel) Segment(mesh domain.MeshHandle, edge domain.Shape, hyp domain.SegmentHypothesis) error {
	return m.Called(mesh, edge, hyp).Error(0)
}

func (m *MockKernel) Quadrangle(mesh domain.MeshHandle) error {
	return m.Called(mesh).Error(0)
}

func (m *MockKernel) Hexahedron(mesh domain.MeshHandle) error {
	return m.Called(mesh).Error(0)
}

func (m *MockKernel) GroupOnGeometry(mesh domain.MeshHandle, group domain.Shape, name string) error {
	return m.Called(mesh, group, name).Error(0)
}

func (m *MockKernel) Compute(ctx context.Context, mesh domain.MeshHandle) error {
	return m.Called(ctx, mesh).Error(0)
}

func (m *MockKernel) AspectRatios(mesh domain.MeshHandle) ([]float64, error) {
	args := m.Called(mesh)
	out, _ := args.Get(0).([]float64)
	return out, args.Error(1)
}

func (m *MockKernel) ExportMesh(mesh domain.MeshHandle, w io.Writer, format domain.ExportFormat) error {
	return m.Called(mesh, w, format).Error(0)
}
