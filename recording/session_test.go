package recording_test

import (
	"context"
	"crush-chat/errors"
	"crush-chat/mocks"
	"crush-chat/recording"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func armedSession(t *testing.T, ctrl *gomock.Controller) (*recording.Session, *mocks.MockBackend) {
	t.Helper()
	backend := mocks.NewMockBackend(ctrl)
	backend.EXPECT().RequestPermission(gomock.Any()).Return(true, nil).Times(1)
	backend.EXPECT().Prepare(gomock.Any()).Return(nil).Times(1)
	session := recording.NewSession(slog.Default(), backend)
	require.NoError(t, session.Arm(context.Background()))
	return session, backend
}

func TestSession_Happy_Path(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	session, backend := armedSession(t, ctrl)

	backend.EXPECT().Start(gomock.Any()).Return(nil).Times(1)
	backend.EXPECT().Stop(gomock.Any()).Return("file://rec1.m4a", nil).Times(1)
	backend.EXPECT().Release().Return(nil).Times(1)

	req.Equal(recording.Armed, session.State())
	req.NoError(session.Start(ctx))
	req.Equal(recording.Capturing, session.State())
	req.True(session.Capturing())

	req.NoError(session.Stop(ctx))
	req.Equal(recording.Completed, session.State())
	result, ok := session.Result()
	req.True(ok)
	req.Equal("file://rec1.m4a", result.URI)
	req.GreaterOrEqual(result.Duration.Nanoseconds(), int64(0))
}

func TestSession_Arm_Is_Reentrant(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	session, _ := armedSession(t, ctrl)

	// Second arm does not hit the backend again
	req.NoError(session.Arm(context.Background()))
	req.Equal(recording.Armed, session.State())
}

func TestSession_Permission_Declined(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackend(ctrl)
	backend.EXPECT().RequestPermission(gomock.Any()).Return(false, nil).Times(1)
	backend.EXPECT().Prepare(gomock.Any()).Times(0)
	session := recording.NewSession(slog.Default(), backend)

	err := session.Arm(context.Background())
	req.ErrorIs(err, errors.ErrPermissionDenied)
	req.Equal(recording.Unarmed, session.State())
}

func TestSession_Device_Unavailable(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackend(ctrl)
	backend.EXPECT().RequestPermission(gomock.Any()).Return(true, nil).Times(1)
	backend.EXPECT().Prepare(gomock.Any()).Return(fmt.Errorf("no input route")).Times(1)
	backend.EXPECT().Release().Return(nil).Times(1)
	session := recording.NewSession(slog.Default(), backend)

	err := session.Arm(context.Background())
	req.ErrorIs(err, errors.ErrDeviceUnavailable)
	req.Equal(recording.Unarmed, session.State())
}

func TestSession_Start_Requires_Armed(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	session := recording.NewSession(slog.Default(), mocks.NewMockBackend(ctrl))

	req.ErrorIs(session.Start(context.Background()), errors.ErrInvalidState)
	req.ErrorIs(session.Stop(context.Background()), errors.ErrInvalidState)
	req.ErrorIs(session.Cancel(), errors.ErrInvalidState)
}

func TestSession_Cancel_While_Capturing(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	session, backend := armedSession(t, ctrl)

	backend.EXPECT().Start(gomock.Any()).Return(nil).Times(1)
	backend.EXPECT().Release().Return(nil).Times(1)
	backend.EXPECT().Stop(gomock.Any()).Times(0)

	req.NoError(session.Start(context.Background()))
	req.NoError(session.Cancel())
	req.Equal(recording.Cancelled, session.State())
	_, ok := session.Result()
	req.False(ok)

	// A cancelled session is terminal
	req.ErrorIs(session.Cancel(), errors.ErrInvalidState)
	req.ErrorIs(session.Stop(context.Background()), errors.ErrInvalidState)
}

func TestSession_Stop_Failure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	session, backend := armedSession(t, ctrl)

	backend.EXPECT().Start(gomock.Any()).Return(nil).Times(1)
	backend.EXPECT().Stop(gomock.Any()).Return("", fmt.Errorf("codec error")).Times(1)
	backend.EXPECT().Release().Return(nil).Times(1)

	req.NoError(session.Start(context.Background()))
	err := session.Stop(context.Background())

	req.ErrorIs(err, errors.ErrRecordingFailed)
	req.Equal(recording.Failed, session.State())
	req.ErrorIs(session.Failure(), errors.ErrRecordingFailed)
	req.True(session.State().Terminal())
}

func TestSession_Stop_Without_Locator(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	session, backend := armedSession(t, ctrl)

	backend.EXPECT().Start(gomock.Any()).Return(nil).Times(1)
	backend.EXPECT().Stop(gomock.Any()).Return("  ", nil).Times(1)
	backend.EXPECT().Release().Return(nil).Times(1)

	req.NoError(session.Start(context.Background()))
	req.ErrorIs(session.Stop(context.Background()), errors.ErrRecordingFailed)
	req.Equal(recording.Failed, session.State())
}

func TestSession_Cancel_While_Arming(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackend(ctrl)
	session := recording.NewSession(slog.Default(), backend)

	// Given the permission dialog is open when the screen goes away
	backend.EXPECT().RequestPermission(gomock.Any()).DoAndReturn(func(context.Context) (bool, error) {
		req.NoError(session.Cancel())
		return true, nil
	}).Times(1)
	backend.EXPECT().Prepare(gomock.Any()).Return(nil).Times(1)
	backend.EXPECT().Release().Return(nil).Times(1)

	// When arming resolves
	err := session.Arm(context.Background())

	// Then the recorder is released and nothing stays armed
	req.ErrorIs(err, errors.ErrInvalidState)
	req.Equal(recording.Cancelled, session.State())
}
