package bot

// Intent — распознанное действие пользователя вне диалога.
type Intent int

const (
	IntentUnknown Intent = iota
	IntentMark
	IntentPeriod
	IntentWill
	IntentWont
	IntentCancel
)

// resolveIntent сопоставляет текст сообщения с кнопками. Любой другой текст —
// IntentUnknown, решение за текущим шагом диалога.
func resolveIntent(text string) Intent {
	switch text {
	case BtnMark:
		return IntentMark
	case BtnPeriod:
		return IntentPeriod
	case BtnWill:
		return IntentWill
	case BtnWont:
		return IntentWont
	case BtnCancel:
		return IntentCancel
	default:
		return IntentUnknown
	}
}
