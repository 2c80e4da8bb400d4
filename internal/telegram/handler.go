// Package telegram serves the attendance chat bot.
package telegram

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"rfidattend/internal/attendance"
	"rfidattend/internal/auth"
	"rfidattend/internal/jalali"
)

// Command is a bot command with its menu description.
type Command struct {
	Name        string
	Description string
}

// Commands is the menu registered with the chat platform.
var Commands = []Command{
	{Name: "start", Description: "گرفتن اطلاعات حضور و غیاب آسیل"},
	{Name: "help", Description: "نمایش پیام راهنما"},
	{Name: "weekly_report", Description: "دریافت ریپورت هفته‌ای"},
	{Name: "monthly_report", Description: "دریافت ریپورت ماهیانه"},
}

const (
	textHelp = "در اینجا دستورات قابل استفاده را مشاهده می‌کنید:\n" +
		"/start - شروع تعامل با ربات\n" +
		"/help - نمایش پیام راهنما\n" +
		"/weekly_report - دریافت ریپورت هفته‌ای\n" +
		"/monthly_report - دریافت ریپورت ماهیانه"
	textNotAuthorized   = "شما احراز هویت نشده‌اید. لطفا ابتدا با ارسال کد خصوصی 16 کاراکتری، دسترسی خود را فعال نمایید."
	textAuthorizeFirst  = "لطفا ابتدا با ارسال کد خصوصی احراز هویت 16 کاراکتری، دسترسی خود را فعال نمایید."
	textAuthorized      = "احراز هویت موفقیت‌آمیز بود! حالا می‌توانید از دستورات ربات استفاده کنید."
	textWrongSecret     = "کد احراز هویت نادرست است. لطفا مجدداً تلاش کنید."
	textMalformedSecret = "برای احراز هویت، لطفا کد خصوصی 16 کاراکتری خود را ارسال نمایید."
	textReportFailed    = "خطا در تهیه ریپورت. لطفا بعدا تلاش کنید."
	textSaveFailed      = "احراز هویت انجام شد اما ذخیره آن با خطا مواجه شد."
)

// Update is an incoming chat message reduced to what the handler needs.
type Update struct {
	ChatID    int64
	FirstName string
	Text      string
}

// Reply is an outgoing message. Markdown selects the legacy Markdown parse mode.
type Reply struct {
	ChatID   int64
	Text     string
	Markdown bool
}

// Gatekeeper decides who may use report commands.
type Gatekeeper interface {
	IsAuthorized(id int64) bool
	TryAuthorize(ctx context.Context, id int64, secret string) (auth.Decision, error)
}

// Reporter computes the periodic reports.
type Reporter interface {
	LastWeekReport() (jalali.Range, []attendance.ReportRow, error)
	LastMonthReport() (jalali.Range, []attendance.ReportRow, error)
}

// Handler maps chat messages to replies without touching the network.
type Handler struct {
	gate    Gatekeeper
	reports Reporter
	logger  *zap.Logger
}

// NewHandler builds a Handler.
func NewHandler(gate Gatekeeper, reports Reporter, logger *zap.Logger) *Handler {
	return &Handler{gate: gate, reports: reports, logger: logger}
}

// Handle returns the reply to u, or false when nothing should be sent.
func (h *Handler) Handle(ctx context.Context, u Update) (Reply, bool) {
	text := strings.TrimSpace(u.Text)
	if text == "" {
		return Reply{}, false
	}
	authorized := h.gate.IsAuthorized(u.ChatID)

	if strings.HasPrefix(text, "/") {
		return h.command(u, commandName(text), authorized)
	}
	if authorized {
		return h.reply(u, "پیام دریافت شد: "+text), true
	}
	return h.authorize(ctx, u, text), true
}

// commandName extracts "weekly_report" from "/weekly_report@SomeBot extra".
func commandName(text string) string {
	name := strings.Fields(text)[0][1:]
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name)
}

func (h *Handler) command(u Update, name string, authorized bool) (Reply, bool) {
	switch name {
	case "start":
		first := u.FirstName
		if first == "" {
			first = "there"
		}
		if authorized {
			return h.reply(u, fmt.Sprintf("سلام, %s! شما قبلاً احراز هویت شده‌اید. چطور می‌توانم کمک کنم؟", first)), true
		}
		return h.reply(u, fmt.Sprintf("سلام, %s! برای گرفتن اطلاعات، لطفا کد خصوصی احراز هویت 16 کاراکتری را ارسال نمایید.", first)), true
	case "help":
		return h.reply(u, textHelp), true
	case "weekly_report":
		if !authorized {
			return h.reply(u, textNotAuthorized), true
		}
		return h.report(u, "هفته‌ای", h.reports.LastWeekReport), true
	case "monthly_report":
		if !authorized {
			return h.reply(u, textNotAuthorized), true
		}
		return h.report(u, "ماهیانه", h.reports.LastMonthReport), true
	default:
		if !authorized {
			return h.reply(u, textAuthorizeFirst), true
		}
		return Reply{}, false
	}
}

func (h *Handler) authorize(ctx context.Context, u Update, secret string) Reply {
	decision, err := h.gate.TryAuthorize(ctx, u.ChatID, secret)
	switch decision {
	case auth.Authorized:
		if err != nil {
			h.logger.Error("persist authorized recipient", zap.Int64("chat_id", u.ChatID), zap.Error(err))
			return h.reply(u, textSaveFailed)
		}
		return h.reply(u, textAuthorized)
	case auth.MalformedSecret:
		return h.reply(u, textMalformedSecret)
	default:
		return h.reply(u, textWrongSecret)
	}
}

func (h *Handler) report(u Update, period string, build func() (jalali.Range, []attendance.ReportRow, error)) Reply {
	r, rows, err := build()
	if err != nil {
		h.logger.Error("build report", zap.String("period", period), zap.Error(err))
		return h.reply(u, textReportFailed)
	}
	// every tag in the ledger gets a row; none means nothing was ever scanned
	if len(rows) == 0 {
		return h.reply(u, fmt.Sprintf("هیچ داده‌ای برای ریپورت %s بین تاریخ %s تا %s یافت نشد.", period, r.From, r.To))
	}
	return Reply{ChatID: u.ChatID, Text: FormatReport(period, r, rows), Markdown: true}
}

func (h *Handler) reply(u Update, text string) Reply {
	return Reply{ChatID: u.ChatID, Text: text}
}

// FormatReport renders report rows as a Markdown message.
func FormatReport(period string, r jalali.Range, rows []attendance.ReportRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*ریپورت %s از %s تا %s:*\n\n", period, r.From, r.To)
	for _, row := range rows {
		fmt.Fprintf(&b, "*نام:* %s\n", EscapeMarkdown(row.Name))
		fmt.Fprintf(&b, "*کد:* %s\n", EscapeMarkdown(row.TagID))
		fmt.Fprintf(&b, "*کل زمان کار:* %s\n", row.TotalWorkedTime)
		fmt.Fprintf(&b, "*تعداد روز حضور:* %d\n\n", row.TotalDays)
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

// EscapeMarkdown escapes the characters legacy Markdown treats as entities.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
