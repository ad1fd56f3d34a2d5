// Package transporttest provides test doubles for the transport package.
package transporttest

import (
	"github.com/goevery/classcast/internal/transport"
	mock "github.com/stretchr/testify/mock"
)

var _ transport.Hub = (*MockHub)(nil)

// MockHub is a mock type for the transport.Hub type
type MockHub struct {
	mock.Mock
}

// Broadcast provides a mock function with given fields: room, message
func (_m *MockHub) Broadcast(room string, message transport.Message) int {
	ret := _m.Called(room, message)

	var r0 int
	if rf, ok := ret.Get(0).(func(string, transport.Message) int); ok {
		r0 = rf(room, message)
	} else {
		r0 = ret.Get(0).(int)
	}

	return r0
}

// Connect provides a mock function with given fields: connection
func (_m *MockHub) Connect(connection *transport.Connection) {
	_m.Called(connection)
}

// Disconnect provides a mock function with given fields: connectionId
func (_m *MockHub) Disconnect(connectionId string) {
	_m.Called(connectionId)
}

// Emit provides a mock function with given fields: connectionId, message
func (_m *MockHub) Emit(connectionId string, message transport.Message) bool {
	ret := _m.Called(connectionId, message)

	var r0 bool
	if rf, ok := ret.Get(0).(func(string, transport.Message) bool); ok {
		r0 = rf(connectionId, message)
	} else {
		r0 = ret.Get(0).(bool)
	}

	return r0
}

// Join provides a mock function with given fields: room, connectionId
func (_m *MockHub) Join(room string, connectionId string) error {
	ret := _m.Called(room, connectionId)

	var r0 error
	if rf, ok := ret.Get(0).(func(string, string) error); ok {
		r0 = rf(room, connectionId)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Leave provides a mock function with given fields: room, connectionId
func (_m *MockHub) Leave(room string, connectionId string) {
	_m.Called(room, connectionId)
}

// Rooms provides a mock function with given fields: connectionId
func (_m *MockHub) Rooms(connectionId string) []string {
	ret := _m.Called(connectionId)

	var r0 []string
	if rf, ok := ret.Get(0).(func(string) []string); ok {
		r0 = rf(connectionId)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]string)
	}

	return r0
}

// Stats provides a mock function with no fields
func (_m *MockHub) Stats() transport.HubStats {
	ret := _m.Called()

	var r0 transport.HubStats
	if rf, ok := ret.Get(0).(func() transport.HubStats); ok {
		r0 = rf()
	} else {
		r0 = ret.Get(0).(transport.HubStats)
	}

	return r0
}

// NewMockHub creates a new instance of MockHub. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockHub(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockHub {
	mock := &MockHub{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
