package whatsapp

import "dilli-gateway/internal/identity"

var introMessages = map[string]string{
	identity.LocaleEnglish: "🛒 Dilli: save together on groceries.\n" +
		"Send prices you see in the supermarket and help everyone find cheaper options.\n\n" +
		"Choose one of the buttons (or type the text):\n" +
		"• add a deal: share a price you just found\n" +
		"• find a deal: see what others reported nearby\n\n" +
		"You can also:\n" +
		"• Send your 📍 location to improve results\n" +
		"• Send 👍 or 👎 on a deal you saw\n\n" +
		"Type \"help\" anytime to see this again.",
	identity.LocaleHebrew: "🛒 דילי: חוסכים ביחד על הקניות.\n" +
		"שלחו מחירים שראיתם בסופר ועזרו לכולם למצוא אפשרויות זולות יותר.\n\n" +
		"בחרו באחד הכפתורים (או כתבו את הטקסט):\n" +
		"• הוסף דיל: שתפו מחיר שמצאתם עכשיו\n" +
		"• מצא דיל: ראו מה אחרים דיווחו בסביבה\n\n" +
		"אפשר גם:\n" +
		"• לשלוח 📍 מיקום לתוצאות מדויקות יותר\n" +
		"• לשלוח 👍 או 👎 על דיל שראיתם\n\n" +
		"כתבו \"עזרה\" בכל זמן כדי לראות את ההודעה הזו שוב.",
}

var introButtons = map[string][]Button{
	identity.LocaleEnglish: {
		{ID: "add_deal", Title: "Add a deal"},
		{ID: "find_deal", Title: "Find a deal"},
	},
	identity.LocaleHebrew: {
		{ID: "add_deal", Title: "הוסף דיל"},
		{ID: "find_deal", Title: "מצא דיל"},
	},
}

// IntroMessage returns the welcome text for locale.
func IntroMessage(locale string) string {
	return introMessages[identity.NormalizeLocale(locale)]
}

// IntroButtons returns the localized quick replies shown under the intro.
func IntroButtons(locale string) []Button {
	return introButtons[identity.NormalizeLocale(locale)]
}
