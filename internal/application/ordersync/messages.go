package ordersync

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/erp/odoosync/internal/domain/ordersync"
)

// Message keys. Numeric arguments are passed pre-formatted as strings so the
// printer does not apply locale digit grouping to ids.
const (
	msgUnexpectedReply     = "Unexpected reply from Odoo"
	msgUnexpectedCode      = "Odoo returned code %s"
	msgInvalidData         = "Invalid response data from Odoo"
	msgInvalidStructure    = "Invalid response structure"
	msgUnrecognizedFormat  = "Unrecognized response format"
	msgNoResponseEntry     = "No response received for this order"
	msgOrderSent           = "Order sent to Odoo as %s (ID %s)"
	msgOrderUpdated        = "Order updated in Odoo (ID %s)"
	msgOrderAlreadyExists  = "Order already exists in Odoo as %s (ID %s)"
	msgOrderAlreadySynced  = "Order already synced to Odoo"
	msgSyncFailedNote      = "Odoo sync failed: %s"
	msgUpdateFailedNote    = "Odoo update failed, status unchanged: %s"
	msgAllSent             = "All %s orders were sent to Odoo"
	msgPartiallySent       = "%s of %s orders were sent to Odoo"
	msgNoneSent            = "No orders were sent to Odoo: %s"
	msgSyncInProgress      = "Sync already in progress"
	msgOrderNotFound       = "Order not found"
	msgAuthFailed          = "Could not authenticate with Odoo"
	msgCancelled           = "Order cancelled in Odoo"
	msgCancelFailed        = "Odoo cancellation failed: %s"
	msgDeliveryValidated   = "Delivery validated in Odoo"
	msgDeliveryValidateErr = "Odoo delivery validation failed: %s"
)

var arabicMessages = map[string]string{
	msgUnexpectedReply:     "رد غير متوقع من أودو",
	msgUnexpectedCode:      "أعاد أودو الرمز %s",
	msgInvalidData:         "بيانات استجابة غير صالحة من أودو",
	msgInvalidStructure:    "بنية استجابة غير صالحة",
	msgUnrecognizedFormat:  "تنسيق استجابة غير معروف",
	msgNoResponseEntry:     "لم يتم استلام رد لهذا الطلب",
	msgOrderSent:           "تم إرسال الطلب إلى أودو برقم %s (المعرف %s)",
	msgOrderUpdated:        "تم تحديث الطلب في أودو (المعرف %s)",
	msgOrderAlreadyExists:  "الطلب موجود بالفعل في أودو برقم %s (المعرف %s)",
	msgOrderAlreadySynced:  "تمت مزامنة الطلب مع أودو مسبقاً",
	msgSyncFailedNote:      "فشلت المزامنة مع أودو: %s",
	msgUpdateFailedNote:    "فشل التحديث في أودو، لم تتغير الحالة: %s",
	msgAllSent:             "تم إرسال جميع الطلبات (%s) إلى أودو",
	msgPartiallySent:       "تم إرسال %s من %s طلبات إلى أودو",
	msgNoneSent:            "لم يتم إرسال أي طلب إلى أودو: %s",
	msgSyncInProgress:      "المزامنة قيد التنفيذ بالفعل",
	msgOrderNotFound:       "الطلب غير موجود",
	msgAuthFailed:          "تعذر تسجيل الدخول إلى أودو",
	msgCancelled:           "تم إلغاء الطلب في أودو",
	msgCancelFailed:        "فشل الإلغاء في أودو: %s",
	msgDeliveryValidated:   "تم تأكيد التسليم في أودو",
	msgDeliveryValidateErr: "فشل تأكيد التسليم في أودو: %s",
}

var supportedLocales = []language.Tag{language.English, language.Arabic}

// Localizer renders order notes and result messages in the shop language
// (English or Arabic).
type Localizer struct {
	tag     language.Tag
	printer *message.Printer
}

// NewLocalizer returns a localizer for the given BCP 47 locale ("en_US",
// "ar", "ar-SA"...). Unsupported locales fall back to English.
func NewLocalizer(locale string) *Localizer {
	builder := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, text := range arabicMessages {
		_ = builder.SetString(language.English, key, key)
		_ = builder.SetString(language.Arabic, key, text)
	}

	tag := language.English
	if locale != "" {
		requested, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
		if err == nil {
			_, index, confidence := language.NewMatcher(supportedLocales).Match(requested)
			if confidence != language.No {
				tag = supportedLocales[index]
			}
		}
	}

	return &Localizer{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(builder)),
	}
}

// Tag returns the selected language
func (l *Localizer) Tag() language.Tag {
	return l.tag
}

// Text renders a message key with string arguments
func (l *Localizer) Text(key string, args ...string) string {
	values := make([]any, len(args))
	for i, a := range args {
		values[i] = a
	}
	return l.printer.Sprintf(key, values...)
}

// ERPMessage picks the ERP-provided message in the shop language, falling
// back to the other language and finally to the status description.
func (l *Localizer) ERPMessage(r ordersync.OrderResult) string {
	preferred, other := r.EnglishMessage, r.ArabicMessage
	if l.tag == language.Arabic {
		preferred, other = other, preferred
	}
	for _, m := range []string{preferred, other, r.StatusDescription} {
		if strings.TrimSpace(m) != "" {
			return m
		}
	}
	return l.Text(msgUnrecognizedFormat)
}
