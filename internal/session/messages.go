package session

import "fmt"

// Lang selects the message language.
type Lang string

const (
	LangEn Lang = "en"
	LangAr Lang = "ar"
)

// WarningMessage renders a monitor warning for display.
func WarningMessage(lang Lang, w Warning) string {
	ar := lang == LangAr
	switch w.Kind {
	case WarnIdle:
		if ar {
			return fmt.Sprintf("تحذير: سيتم إرسال الاختبار تلقائياً خلال %d ثانية بسبب عدم النشاط", w.SecondsLeft)
		}
		return fmt.Sprintf("Warning: You will be auto-submitted in %d seconds due to inactivity", w.SecondsLeft)
	case WarnOneMinuteLeft:
		if ar {
			return "دقيقة واحدة متبقية!"
		}
		return "Only 1 minute remaining!"
	case WarnTabHidden:
		if ar {
			return "تحذير: لقد قمت بتبديل التبويب. عد إلى الاختبار فوراً"
		}
		return "Warning: You have switched tabs. Return to the quiz immediately"
	case WarnTabReturned:
		if ar {
			return fmt.Sprintf("لقد كنت بعيداً %d ثانية. إجمالي الوقت المسموح: %d ثانية", w.HiddenFor, w.HiddenAllowed)
		}
		return fmt.Sprintf("You were away for %d seconds. Total allowed: %d seconds", w.HiddenFor, w.HiddenAllowed)
	case WarnFocusLoss:
		if ar {
			return fmt.Sprintf("تحذير: فقدان التركيز %d/%d مرات", w.FocusLosses, w.MaxFocusLosses)
		}
		return fmt.Sprintf("Warning: Focus lost %d/%d times", w.FocusLosses, w.MaxFocusLosses)
	}
	return ""
}

// TerminationMessage explains a forced submission to the user. Manual
// submissions need no explanation and return "".
func TerminationMessage(lang Lang, reason TerminationReason) string {
	ar := lang == LangAr
	switch reason {
	case ReasonIdleTimeout:
		if ar {
			return "تم إرسال الاختبار تلقائياً بسبب عدم النشاط"
		}
		return "Quiz auto-submitted due to inactivity"
	case ReasonHiddenTimeout:
		if ar {
			return "تم إرسال الاختبار تلقائياً بسبب الوقت الطويل بعيداً عن الصفحة"
		}
		return "Quiz auto-submitted due to excessive time away from page"
	case ReasonFocusLoss:
		if ar {
			return "تم اكتشاف العديد من حالات فقدان التركيز. تم إرسال الاختبار تلقائياً"
		}
		return "Too many focus losses detected. Quiz was auto-submitted"
	case ReasonTimeExpired:
		if ar {
			return "انتهى الوقت. تم إرسال الاختبار تلقائياً"
		}
		return "Time is up. Quiz was auto-submitted"
	}
	return ""
}
