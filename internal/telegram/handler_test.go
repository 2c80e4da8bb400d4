package telegram_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rfidattend/internal/attendance"
	"rfidattend/internal/auth"
	"rfidattend/internal/jalali"
	"rfidattend/internal/telegram"
)

type fakeGate struct {
	authorized map[int64]bool
	secret     string
	saveErr    error
}

func (g *fakeGate) IsAuthorized(id int64) bool { return g.authorized[id] }

func (g *fakeGate) TryAuthorize(_ context.Context, id int64, secret string) (auth.Decision, error) {
	if len([]rune(secret)) != auth.SecretLength {
		return auth.MalformedSecret, nil
	}
	if secret != g.secret {
		return auth.Rejected, nil
	}
	g.authorized[id] = true
	return auth.Authorized, g.saveErr
}

type fakeReports struct {
	rows []attendance.ReportRow
	err  error
}

func (f fakeReports) rng() jalali.Range {
	return jalali.Range{From: jalali.Date{Year: 1402, Month: 12, Day: 19}, To: jalali.Date{Year: 1402, Month: 12, Day: 25}}
}

func (f fakeReports) LastWeekReport() (jalali.Range, []attendance.ReportRow, error) {
	return f.rng(), f.rows, f.err
}

func (f fakeReports) LastMonthReport() (jalali.Range, []attendance.ReportRow, error) {
	return jalali.Range{From: jalali.Date{Year: 1402, Month: 12, Day: 1}, To: jalali.Date{Year: 1402, Month: 12, Day: 29}}, f.rows, f.err
}

const chat = int64(42)

func newHandler(gate *fakeGate, reports fakeReports) *telegram.Handler {
	return telegram.NewHandler(gate, reports, zap.NewNop())
}

func handle(t *testing.T, h *telegram.Handler, text string) telegram.Reply {
	t.Helper()
	r, ok := h.Handle(context.Background(), telegram.Update{ChatID: chat, FirstName: "Sara", Text: text})
	require.True(t, ok, "expected a reply to %q", text)
	assert.Equal(t, chat, r.ChatID)
	return r
}

func TestHandler_Start(t *testing.T) {
	gate := &fakeGate{authorized: map[int64]bool{}}
	h := newHandler(gate, fakeReports{})

	assert.Contains(t, handle(t, h, "/start").Text, "کد خصوصی احراز هویت 16 کاراکتری")
	assert.Contains(t, handle(t, h, "/start").Text, "سلام, Sara!")

	gate.authorized[chat] = true
	assert.Contains(t, handle(t, h, "/start@AttendanceBot").Text, "قبلاً احراز هویت شده‌اید")
}

func TestHandler_HelpListsEveryCommand(t *testing.T) {
	h := newHandler(&fakeGate{authorized: map[int64]bool{}}, fakeReports{})
	help := handle(t, h, "/help").Text
	for _, c := range telegram.Commands {
		assert.Contains(t, help, "/"+c.Name)
	}
}

func TestHandler_AuthorizationFlow(t *testing.T) {
	gate := &fakeGate{authorized: map[int64]bool{}, secret: "0123456789abcdef"}
	h := newHandler(gate, fakeReports{})

	assert.Contains(t, handle(t, h, "short").Text, "16 کاراکتری خود")
	assert.Contains(t, handle(t, h, "fedcba9876543210").Text, "نادرست")
	assert.False(t, gate.authorized[chat])

	assert.Contains(t, handle(t, h, " 0123456789abcdef ").Text, "موفقیت‌آمیز")
	assert.True(t, gate.authorized[chat])

	// authorized senders get an acknowledgement instead of another attempt
	assert.Equal(t, "پیام دریافت شد: hi", handle(t, h, "hi").Text)
}

func TestHandler_AuthorizationSaveFailure(t *testing.T) {
	gate := &fakeGate{authorized: map[int64]bool{}, secret: "0123456789abcdef", saveErr: errors.New("disk")}
	h := newHandler(gate, fakeReports{})
	assert.Contains(t, handle(t, h, "0123456789abcdef").Text, "ذخیره")
}

func TestHandler_ReportsRequireAuthorization(t *testing.T) {
	h := newHandler(&fakeGate{authorized: map[int64]bool{}}, fakeReports{})
	assert.Contains(t, handle(t, h, "/weekly_report").Text, "احراز هویت نشده‌اید")
	assert.Contains(t, handle(t, h, "/monthly_report").Text, "احراز هویت نشده‌اید")
	assert.Contains(t, handle(t, h, "/unknown").Text, "لطفا ابتدا")
}

func TestHandler_UnknownCommandFromAuthorizedIsIgnored(t *testing.T) {
	h := newHandler(&fakeGate{authorized: map[int64]bool{chat: true}}, fakeReports{})
	_, ok := h.Handle(context.Background(), telegram.Update{ChatID: chat, Text: "/unknown"})
	assert.False(t, ok)
	_, ok = h.Handle(context.Background(), telegram.Update{ChatID: chat, Text: "   "})
	assert.False(t, ok)
}

func TestHandler_WeeklyReport(t *testing.T) {
	rows := []attendance.ReportRow{
		{TagID: "A1", Name: "ali_reza", TotalWorkedTime: "08:30", TotalDays: 1},
		{TagID: "B2", Name: "Bita", TotalWorkedTime: "00:00", TotalDays: 0},
	}
	h := newHandler(&fakeGate{authorized: map[int64]bool{chat: true}}, fakeReports{rows: rows})

	r := handle(t, h, "/weekly_report")
	assert.True(t, r.Markdown)
	want := "*ریپورت هفته‌ای از 1402-12-19 تا 1402-12-25:*\n\n" +
		"*نام:* ali\\_reza\n*کد:* A1\n*کل زمان کار:* 08:30\n*تعداد روز حضور:* 1\n\n" +
		"*نام:* Bita\n*کد:* B2\n*کل زمان کار:* 00:00\n*تعداد روز حضور:* 0\n\n"
	assert.Equal(t, want, r.Text)
}

func TestHandler_MonthlyReportEmpty(t *testing.T) {
	h := newHandler(&fakeGate{authorized: map[int64]bool{chat: true}}, fakeReports{})
	r := handle(t, h, "/monthly_report")
	assert.False(t, r.Markdown)
	assert.Equal(t, "هیچ داده‌ای برای ریپورت ماهیانه بین تاریخ 1402-12-01 تا 1402-12-29 یافت نشد.", r.Text)
}

func TestHandler_ReportFailure(t *testing.T) {
	h := newHandler(&fakeGate{authorized: map[int64]bool{chat: true}}, fakeReports{err: errors.New("boom")})
	assert.Contains(t, handle(t, h, "/weekly_report").Text, "خطا")
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `a\_b\*c\`+"`"+`d\[e]`, telegram.EscapeMarkdown("a_b*c`d[e]"))
}
