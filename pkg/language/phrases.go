package language

import "strings"

var greetings = map[Code]string{
	English: "Hello! Thank you for calling {business}. How can I help you today?",
	Urdu:    "السلام علیکم! {business} پر کال کرنے کا شکریہ۔ میں آپ کی کس طرح مدد کر سکتا ہوں؟",
	Arabic:  "مرحبا! شكرا لاتصالك بـ {business}. كيف يمكنني مساعدتك اليوم؟",
	Spanish: "¡Hola! Gracias por llamar a {business}. ¿Cómo puedo ayudarte hoy?",
	French:  "Bonjour! Merci d'avoir appelé {business}. Comment puis-je vous aider aujourd'hui?",
}

var repeatPrompts = map[Code]string{
	English: "I didn't catch that. Could you please repeat?",
	Urdu:    "میں نے یہ نہیں سنا۔ براہ کرم دوبارہ کہیں؟",
	Arabic:  "لم أفهم ذلك. هل يمكنك التكرار من فضلك؟",
	Spanish: "No entendí eso. ¿Podrías repetir por favor?",
	French:  "Je n'ai pas compris. Pourriez-vous répéter s'il vous plaît?",
}

var apologies = map[Code]string{
	English: "I'm sorry, I encountered an error. Please try again later.",
	Urdu:    "معذرت، میں نے ایک خرابی کا سامنا کیا۔ براہ کرم بعد میں دوبارہ کوشش کریں۔",
	Arabic:  "عذرا، لقد واجهت خطأ. يرجى المحاولة مرة أخرى لاحقا.",
	Spanish: "Lo siento, encontré un error. Por favor, inténtalo de nuevo más tarde.",
	French:  "Je suis désolé, j'ai rencontré une erreur. Veuillez réessayer plus tard.",
}

var completions = map[Code]string{
	English: "Thank you! Your request has been confirmed. Goodbye!",
	Urdu:    "شکریہ! آپ کی درخواست کی تصدیق ہو گئی ہے۔ خدا حافظ!",
	Arabic:  "شكرا لك! تم تأكيد طلبك. مع السلامة!",
	Spanish: "¡Gracias! Tu solicitud ha sido confirmada. ¡Adiós!",
	French:  "Merci! Votre demande a été confirmée. Au revoir!",
}

var changePrompts = map[Code]string{
	English: "No problem. What would you like to change?",
	Urdu:    "کوئی بات نہیں۔ آپ کیا تبدیل کرنا چاہیں گے؟",
	Arabic:  "لا مشكلة. ماذا تريد أن تغير؟",
	Spanish: "No hay problema. ¿Qué te gustaría cambiar?",
	French:  "Pas de problème. Que souhaitez-vous modifier?",
}

// Greeting returns the canned greeting for a language with the business
// name substituted in.
func Greeting(lang Code, businessName string) string {
	tpl, ok := greetings[lang]
	if !ok {
		tpl = greetings[English]
	}
	return strings.ReplaceAll(tpl, "{business}", businessName)
}

// RepeatPrompt returns the "say that again" phrase for a language.
func RepeatPrompt(lang Code) string {
	if p, ok := repeatPrompts[lang]; ok {
		return p
	}
	return repeatPrompts[English]
}

// Apology returns the generic degraded-service phrase for a language.
func Apology(lang Code) string {
	if p, ok := apologies[lang]; ok {
		return p
	}
	return apologies[English]
}

// Completion returns the confirmed-and-goodbye phrase for a language.
func Completion(lang Code) string {
	if p, ok := completions[lang]; ok {
		return p
	}
	return completions[English]
}

// ChangePrompt returns the what-to-change phrase for a language.
func ChangePrompt(lang Code) string {
	if p, ok := changePrompts[lang]; ok {
		return p
	}
	return changePrompts[English]
}
