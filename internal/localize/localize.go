// ABOUTME: Localized user-visible notices via x/text message catalogs.
// ABOUTME: Short strings only; diagnostic detail stays in logs, never here.

// Package localize renders the short notices users see. Each
// conversation carries a language code; unknown codes fall back to
// English. Internal error detail is never surfaced through these
// strings.
package localize

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys. The English text is the key, as gettext does it.
const (
	MsgInsufficientBalance = "Insufficient balance to use the service."
	MsgInsufficientImage   = "Insufficient balance to generate the image."
	MsgFileTooLarge        = "The file you are trying to send is too large. The maximum allowed size is %.2f MB."
	MsgUnsupportedFile     = "Unsupported file type."
	MsgContentPolicy       = "Your request was rejected due to a content policy violation."
	MsgGenericFailure      = "An error occurred while processing your request."
	MsgEmailSent           = "Letter successfully sent."
	MsgGoodbye             = "Goodbye! If you need assistance again, just send me a message."
	MsgBalance             = "Your current balance is: $%.2f"
)

var translations = catalog.NewBuilder(catalog.Fallback(language.English))

func init() {
	for _, key := range []string{
		MsgInsufficientBalance, MsgInsufficientImage, MsgFileTooLarge,
		MsgUnsupportedFile, MsgContentPolicy, MsgGenericFailure,
		MsgEmailSent, MsgGoodbye, MsgBalance,
	} {
		translations.SetString(language.English, key, key)
	}

	ru := map[string]string{
		MsgInsufficientBalance: "Недостаточно средств для использования сервиса.",
		MsgInsufficientImage:   "Недостаточно средств для генерации изображения.",
		MsgFileTooLarge:        "Файл, который вы пытаетесь отправить, слишком большой. Максимально допустимый размер: %.2f МБ.",
		MsgUnsupportedFile:     "Неподдерживаемый тип файла.",
		MsgContentPolicy:       "Ваш запрос отклонен из-за нарушения политики контента.",
		MsgGenericFailure:      "Произошла ошибка при обработке вашего запроса.",
		MsgEmailSent:           "Письмо успешно отправлено.",
		MsgGoodbye:             "До свидания! Если вам снова понадобится помощь, просто напишите мне.",
		MsgBalance:             "Ваш текущий баланс: $%.2f",
	}
	for key, text := range ru {
		translations.SetString(language.Russian, key, text)
	}
}

// Printer returns a message printer for the given BCP 47 language
// code. Unparseable or untranslated codes render English.
func Printer(langCode string) *message.Printer {
	tag, err := language.Parse(langCode)
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag, message.Catalog(translations))
}
