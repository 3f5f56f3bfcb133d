package audit_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"ledger/pkg/platform/audit"
	"ledger/pkg/platform/audit/mocks"
	"ledger/pkg/platform/sentinel"
	"ledger/pkg/requestcontext"
)

// =============================================================================
// Writer Test Suite
// =============================================================================
// Justification for unit tests: the writer is the failure boundary of the
// audit path. Tests pin down that store errors and panics come back as values
// and that fan-out only sees persisted change sets.

type WriterSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	store     *mocks.MockStore
	publisher *mocks.MockPublisher
	writer    *audit.Writer
}

func TestWriterSuite(t *testing.T) {
	suite.Run(t, new(WriterSuite))
}

func (s *WriterSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)
	s.writer = audit.NewWriter(s.store,
		audit.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		audit.WithPublisher(s.publisher),
	)
}

func (s *WriterSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *WriterSuite) TestBegin() {
	s.Run("assigns correlation id and anonymous actor", func() {
		s.store.EXPECT().CreateHeader(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, h *audit.Header) error {
				s.NotEqual("00000000-0000-0000-0000-000000000000", h.CorrelationID.String())
				s.Equal(requestcontext.AnonymousUser, h.UserName)
				s.False(h.Timestamp.IsZero())
				s.Zero(h.StatusCode)
				h.ID = 11
				return nil
			})

		id, err := s.writer.Begin(context.Background(), audit.Header{Method: "PATCH", Path: "/api/v1/documents/1"})
		s.Require().NoError(err)
		s.Equal(int64(11), id)
	})

	s.Run("store failure is returned", func() {
		s.store.EXPECT().CreateHeader(gomock.Any(), gomock.Any()).Return(sentinel.ErrUnavailable)

		_, err := s.writer.Begin(context.Background(), audit.Header{Method: "POST"})
		s.ErrorIs(err, sentinel.ErrUnavailable)
	})
}

func (s *WriterSuite) TestComplete() {
	s.Run("missing header is reported, never created", func() {
		s.store.EXPECT().CompleteHeader(gomock.Any(), int64(99), gomock.Any()).Return(sentinel.ErrNotFound)

		err := s.writer.Complete(context.Background(), 99, audit.Outcome{StatusCode: 200})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *WriterSuite) TestAttachChanges() {
	newValue := "12"
	changes := []audit.FieldChange{
		{EntityType: "DocumentLineItem", EntityID: "5", Operation: audit.OperationUpdated, FieldName: "Quantity", NewValue: &newValue},
		{EntityType: "DocumentLineItem", Operation: audit.OperationUpdated, FieldName: "UpdatedAt"},
	}

	s.Run("empty change list is a no-op", func() {
		s.Nil(s.writer.AttachChanges(context.Background(), 1, nil))
	})

	s.Run("stamps header id and publishes", func() {
		s.store.EXPECT().AppendChanges(gomock.Any(), int64(3), gomock.Any()).DoAndReturn(
			func(_ context.Context, _ int64, rows []audit.FieldChange) error {
				s.Len(rows, 2)
				for _, row := range rows {
					s.Equal(int64(3), row.HeaderID)
				}
				s.Equal(audit.UnknownEntityKey, rows[1].EntityID)
				return nil
			})
		s.publisher.EXPECT().Offer(gomock.Any()).DoAndReturn(func(set audit.ChangeSet) bool {
			s.Equal(int64(3), set.HeaderID)
			s.Len(set.Changes, 2)
			return true
		})

		s.Nil(s.writer.AttachChanges(context.Background(), 3, changes))
	})

	s.Run("store error becomes write failure without publishing", func() {
		storeErr := errors.New("connection reset")
		s.store.EXPECT().AppendChanges(gomock.Any(), int64(4), gomock.Any()).Return(storeErr)

		failure := s.writer.AttachChanges(context.Background(), 4, changes)
		s.Require().NotNil(failure)
		s.Equal(int64(4), failure.HeaderID)
		s.Equal(2, failure.Count)
		s.ErrorIs(failure, storeErr)
	})

	s.Run("store panic becomes write failure", func() {
		s.store.EXPECT().AppendChanges(gomock.Any(), int64(5), gomock.Any()).DoAndReturn(
			func(context.Context, int64, []audit.FieldChange) error {
				panic("driver bug")
			})

		failure := s.writer.AttachChanges(context.Background(), 5, changes)
		s.Require().NotNil(failure)
		s.Contains(failure.Error(), "driver bug")
	})

	s.Run("full fan-out inbox does not fail the write", func() {
		s.store.EXPECT().AppendChanges(gomock.Any(), int64(6), gomock.Any()).Return(nil)
		s.publisher.EXPECT().Offer(gomock.Any()).Return(false)

		s.Nil(s.writer.AttachChanges(context.Background(), 6, changes))
	})
}

func TestIsSuccess(t *testing.T) {
	cases := map[int]bool{199: false, 200: true, 204: true, 304: true, 399: true, 400: false, 409: false, 500: false}
	for status, want := range cases {
		if got := audit.IsSuccess(status); got != want {
			t.Errorf("IsSuccess(%d) = %v, want %v", status, got, want)
		}
	}
}
