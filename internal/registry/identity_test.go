package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/free5gc/mme/internal/model"
	"github.com/free5gc/mme/internal/s1ap"
)

func TestRecordIdentityRequestCreatesAttachingPlaceholder(t *testing.T) {
	testRegistry, _ := newTestRegistry(t)

	require.NoError(t, testRegistry.RecordIdentityRequest(testImsi, 5000))
	checkInvariants(t, testRegistry)

	sub, exists := testRegistry.imsiToSubscriber[testImsi]
	require.True(t, exists)
	assert.Equal(t, model.StateAttaching, sub.state)
	assert.Equal(t, model.Timestamp(5000), testRegistry.imsiToIdentityRequestTimeout[testImsi])

	// Re-recording refreshes the deadline.
	require.NoError(t, testRegistry.RecordIdentityRequest(testImsi, 8000))
	checkInvariants(t, testRegistry)
	assert.Equal(t, model.Timestamp(8000), testRegistry.imsiToIdentityRequestTimeout[testImsi])
}

func TestRecordIdentityRequestRejectsAttachedSubscriber(t *testing.T) {
	testRegistry, _ := newTestRegistry(t)
	attachTestSubscriber(t, testRegistry)

	recordError := testRegistry.RecordIdentityRequest(testImsi, 5000)
	assert.ErrorIs(t, recordError, ErrInvalidStateForEvent)
	checkInvariants(t, testRegistry)
	assert.Equal(t, 0, testRegistry.PendingIdentityRequestCount())
}

func TestHandleTimeoutsTearsDownExpiredAttach(t *testing.T) {
	testRegistry, _ := newTestRegistry(t)

	require.NoError(t, testRegistry.RecordIdentityRequest(testImsi, 5000))

	// Before the deadline nothing happens.
	assert.Equal(t, 0, testRegistry.HandleTimeouts(4999))
	checkInvariants(t, testRegistry)
	assert.Equal(t, 1, testRegistry.SubscriberCount())

	// At the deadline the pending attach is torn down; no UnReg is due
	// because no Reg was ever emitted.
	assert.Equal(t, 1, testRegistry.HandleTimeouts(5000))
	checkInvariants(t, testRegistry)
	assert.Equal(t, 0, testRegistry.SubscriberCount())
	assert.Equal(t, 0, testRegistry.PendingIdentityRequestCount())

	// The sweep is idempotent.
	assert.Equal(t, 0, testRegistry.HandleTimeouts(6000))
	checkInvariants(t, testRegistry)
}

func TestHandleTimeoutsSweepsOnlyExpiredEntries(t *testing.T) {
	testRegistry, _ := newTestRegistry(t)

	require.NoError(t, testRegistry.RecordIdentityRequest(100, 1000))
	require.NoError(t, testRegistry.RecordIdentityRequest(200, 2000))
	require.NoError(t, testRegistry.RecordIdentityRequest(300, 3000))

	assert.Equal(t, 2, testRegistry.HandleTimeouts(2000))
	checkInvariants(t, testRegistry)

	assert.Equal(t, 1, testRegistry.SubscriberCount())
	_, survivorExists := testRegistry.imsiToSubscriber[300]
	assert.True(t, survivorExists)
}

func TestIdentityResponseBeatsTimeout(t *testing.T) {
	testRegistry, _ := newTestRegistry(t)

	require.NoError(t, testRegistry.RecordIdentityRequest(testImsi, 5000))

	output, handleError := handle(t, testRegistry,
		s1ap.NewIdentityResponse(4000, testImsi, testEnodebID, testMmeID, testCgi))
	require.NoError(t, handleError)
	require.NotNil(t, output)

	// The attached subscriber is no longer eligible for teardown.
	assert.Equal(t, 0, testRegistry.HandleTimeouts(9000))
	assert.Equal(t, 1, testRegistry.SubscriberCount())
	assert.Equal(t, model.StateAttached, testRegistry.imsiToSubscriber[testImsi].state)
}
