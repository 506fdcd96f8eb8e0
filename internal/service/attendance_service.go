package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"taskflow/internal/model"
	"taskflow/internal/repository"
)

// attendanceListLimit caps attendance listings
const attendanceListLimit = 100

type AttendanceResponse struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Date         string    `json:"date"`
	CheckInTime  string    `json:"check_in_time"`
	CheckOutTime *string   `json:"check_out_time"`
	Status       string    `json:"status"`
}

type AttendanceService interface {
	CheckIn(ctx context.Context, actor Actor) (*AttendanceResponse, error)
	CheckOut(ctx context.Context, actor Actor) (*AttendanceResponse, error)
	// List returns the actor's own entries; managers and admins may list
	// everyone or filter by username.
	List(ctx context.Context, actor Actor, username string) ([]AttendanceResponse, error)
}

type attendanceService struct {
	repo      repository.AttendanceRepository
	txManager repository.TransactionManager
	clock     Clock
	logger    *slog.Logger
}

func NewAttendanceService(repo repository.AttendanceRepository, txManager repository.TransactionManager, clock Clock, logger *slog.Logger) AttendanceService {
	return &attendanceService{repo: repo, txManager: txManager, clock: clock, logger: logger}
}

func mapAttendanceToResponse(a *model.Attendance) *AttendanceResponse {
	res := &AttendanceResponse{
		ID:          a.ID,
		Username:    a.Username,
		Date:        time.Time(a.Date).Format(model.DateLayout),
		CheckInTime: a.CheckInTime.Format(time.RFC3339),
		Status:      a.Status,
	}
	if a.CheckOutTime != nil {
		out := a.CheckOutTime.Format(time.RFC3339)
		res.CheckOutTime = &out
	}
	return res
}

func (s *attendanceService) CheckIn(ctx context.Context, actor Actor) (*AttendanceResponse, error) {
	now := s.clock.Now()
	today := s.clock.Date(now)

	entry := &model.Attendance{
		Username:    actor.Username,
		Date:        datatypes.Date(today),
		CheckInTime: now,
		Status:      model.AttendancePresent,
	}
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		_, err := s.repo.FindOpenForUpdate(txCtx, actor.Username, today.Format(model.DateLayout))
		if err == nil {
			return ConflictError("Already checked in today")
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return s.repo.Create(txCtx, entry)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, ConflictError("Already checked in today")
	}
	if err != nil {
		return nil, storageFailure(s.logger, "check in", err, "")
	}
	return mapAttendanceToResponse(entry), nil
}

func (s *attendanceService) CheckOut(ctx context.Context, actor Actor) (*AttendanceResponse, error) {
	now := s.clock.Now()
	today := s.clock.Date(now).Format(model.DateLayout)

	var entry *model.Attendance
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		entry, err = s.repo.FindOpenForUpdate(txCtx, actor.Username, today)
		if err != nil {
			return err
		}
		entry.CheckOutTime = &now
		return s.repo.Update(txCtx, entry)
	})
	if err != nil {
		return nil, storageFailure(s.logger, "check out", err, "No open check-in for today")
	}
	return mapAttendanceToResponse(entry), nil
}

func (s *attendanceService) List(ctx context.Context, actor Actor, username string) ([]AttendanceResponse, error) {
	username = strings.TrimSpace(username)
	if !actor.Can(model.CapViewAttendance) {
		if username != "" && username != actor.Username {
			return nil, AuthorizationError("You can only view your own attendance")
		}
		username = actor.Username
	}

	entries, err := s.repo.List(ctx, username, attendanceListLimit)
	if err != nil {
		return nil, storageFailure(s.logger, "list attendance", err, "")
	}
	res := make([]AttendanceResponse, 0, len(entries))
	for i := range entries {
		res = append(res, *mapAttendanceToResponse(&entries[i]))
	}
	return res, nil
}
