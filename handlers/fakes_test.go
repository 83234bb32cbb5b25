package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"dietChallengeAPI/internal/types/calendar"
	"dietChallengeAPI/internal/types/challenge"
	"dietChallengeAPI/internal/types/payment"
	"dietChallengeAPI/internal/types/profile"
	"dietChallengeAPI/middleware"

	"github.com/gorilla/mux"
)

type fakeChallengeAPI struct {
	ListHabitsFn         func(ctx context.Context, clerkID string) ([]*challenge.Habit, error)
	CreateCustomHabitFn  func(ctx context.Context, clerkID string, req *challenge.CreateCustomHabitRequest) (*challenge.Habit, error)
	CreateChallengeFn    func(ctx context.Context, clerkID string, req *challenge.CreateChallengeRequest) (*challenge.Challenge, error)
	GetActiveChallengeFn func(ctx context.Context, clerkID string) (*challenge.Challenge, error)
	SaveDailyRecordFn    func(ctx context.Context, clerkID, date string, req *challenge.SaveRecordRequest) (*challenge.SaveRecordResponse, error)
	GetDashboardFn       func(ctx context.Context, clerkID string) (*challenge.Dashboard, error)
	GetCalendarFn        func(ctx context.Context, clerkID string) (*calendar.CalendarResponse, error)
	FinishChallengeFn    func(ctx context.Context, clerkID string) (*challenge.Challenge, error)
	GetHistoryFn         func(ctx context.Context, clerkID string) ([]*challenge.Challenge, error)
}

func (f *fakeChallengeAPI) ListHabits(ctx context.Context, clerkID string) ([]*challenge.Habit, error) {
	return f.ListHabitsFn(ctx, clerkID)
}

func (f *fakeChallengeAPI) CreateCustomHabit(ctx context.Context, clerkID string, req *challenge.CreateCustomHabitRequest) (*challenge.Habit, error) {
	return f.CreateCustomHabitFn(ctx, clerkID, req)
}

func (f *fakeChallengeAPI) CreateChallenge(ctx context.Context, clerkID string, req *challenge.CreateChallengeRequest) (*challenge.Challenge, error) {
	return f.CreateChallengeFn(ctx, clerkID, req)
}

func (f *fakeChallengeAPI) GetActiveChallenge(ctx context.Context, clerkID string) (*challenge.Challenge, error) {
	return f.GetActiveChallengeFn(ctx, clerkID)
}

func (f *fakeChallengeAPI) SaveDailyRecord(ctx context.Context, clerkID, date string, req *challenge.SaveRecordRequest) (*challenge.SaveRecordResponse, error) {
	return f.SaveDailyRecordFn(ctx, clerkID, date, req)
}

func (f *fakeChallengeAPI) GetDashboard(ctx context.Context, clerkID string) (*challenge.Dashboard, error) {
	return f.GetDashboardFn(ctx, clerkID)
}

func (f *fakeChallengeAPI) GetCalendar(ctx context.Context, clerkID string) (*calendar.CalendarResponse, error) {
	return f.GetCalendarFn(ctx, clerkID)
}

func (f *fakeChallengeAPI) FinishChallenge(ctx context.Context, clerkID string) (*challenge.Challenge, error) {
	return f.FinishChallengeFn(ctx, clerkID)
}

func (f *fakeChallengeAPI) GetHistory(ctx context.Context, clerkID string) ([]*challenge.Challenge, error) {
	return f.GetHistoryFn(ctx, clerkID)
}

type fakeProfileAPI struct {
	EnsureProfileFn         func(ctx context.Context, clerkID string) (*profile.Profile, error)
	UpdateSettingsFn        func(ctx context.Context, clerkID string, req *profile.UpdateSettingsRequest) (*profile.Profile, error)
	GetPlansFn              func(ctx context.Context, clerkID string) (*profile.PlansResponse, error)
	AckUnlockNotificationFn func(ctx context.Context, clerkID string) (*profile.PlansResponse, error)
	CreateProfileFn         func(ctx context.Context, req *profile.CreateProfileRequest) (*profile.Profile, error)
	DeleteProfileFn         func(ctx context.Context, clerkID string) error
}

func (f *fakeProfileAPI) EnsureProfile(ctx context.Context, clerkID string) (*profile.Profile, error) {
	if f.EnsureProfileFn == nil {
		return &profile.Profile{ClerkID: clerkID}, nil
	}
	return f.EnsureProfileFn(ctx, clerkID)
}

func (f *fakeProfileAPI) UpdateSettings(ctx context.Context, clerkID string, req *profile.UpdateSettingsRequest) (*profile.Profile, error) {
	return f.UpdateSettingsFn(ctx, clerkID, req)
}

func (f *fakeProfileAPI) GetPlans(ctx context.Context, clerkID string) (*profile.PlansResponse, error) {
	return f.GetPlansFn(ctx, clerkID)
}

func (f *fakeProfileAPI) AckUnlockNotification(ctx context.Context, clerkID string) (*profile.PlansResponse, error) {
	return f.AckUnlockNotificationFn(ctx, clerkID)
}

func (f *fakeProfileAPI) CreateProfile(ctx context.Context, req *profile.CreateProfileRequest) (*profile.Profile, error) {
	return f.CreateProfileFn(ctx, req)
}

func (f *fakeProfileAPI) DeleteProfileByClerkID(ctx context.Context, clerkID string) error {
	return f.DeleteProfileFn(ctx, clerkID)
}

type fakePaymentAPI struct {
	CreatePaymentIntentFn func(ctx context.Context, clerkID string, req *payment.CreateIntentRequest) (*payment.CreateIntentResponse, error)
	SavePaymentIntentFn   func(ctx context.Context, clerkID, paymentIntentID string) (*challenge.Challenge, error)
	ProcessRefundFn       func(ctx context.Context, clerkID, challengeID string) (*payment.RefundResult, error)
	AttachPaymentIntentFn func(ctx context.Context, userID, paymentIntentID string) (*challenge.Challenge, error)
}

func (f *fakePaymentAPI) CreatePaymentIntent(ctx context.Context, clerkID string, req *payment.CreateIntentRequest) (*payment.CreateIntentResponse, error) {
	return f.CreatePaymentIntentFn(ctx, clerkID, req)
}

func (f *fakePaymentAPI) SavePaymentIntent(ctx context.Context, clerkID, paymentIntentID string) (*challenge.Challenge, error) {
	return f.SavePaymentIntentFn(ctx, clerkID, paymentIntentID)
}

func (f *fakePaymentAPI) ProcessRefund(ctx context.Context, clerkID, challengeID string) (*payment.RefundResult, error) {
	return f.ProcessRefundFn(ctx, clerkID, challengeID)
}

func (f *fakePaymentAPI) AttachPaymentIntent(ctx context.Context, userID, paymentIntentID string) (*challenge.Challenge, error) {
	return f.AttachPaymentIntentFn(ctx, userID, paymentIntentID)
}

// serve routes a request through a mux router, authenticated as clerkID when it is not empty.
func serve(method, pattern, target, clerkID, body string, h http.HandlerFunc) *httptest.ResponseRecorder {
	r := mux.NewRouter()
	r.HandleFunc(pattern, h).Methods(method)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if clerkID != "" {
		req = req.WithContext(middleware.WithClerkID(req.Context(), clerkID))
	}

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}
