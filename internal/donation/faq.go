package donation

// FAQEntry is one question of the public FAQ. Answers may carry <strong> markup.
type FAQEntry struct {
	Question string `json:"q"`
	Answer   string `json:"a"`
}

var faqEntries = []FAQEntry{
	{
		Question: "Askıda Forma nedir?",
		Answer:   "Askıda Forma, futbol tutkusunu bir iyilik köprüsüne dönüştüren, ihtiyaç sahibi çocuklarımıza tuttukları takımların formalarını ulaştırmak amacıyla kurulmuş bir sosyal sorumluluk platformudur.",
	},
	{
		Question: "Askıda Forma resmi bir kuruluş mu?",
		Answer:   "Evet, platformumuz tamamen yasal ve şeffaf bir zeminde faaliyet göstermektedir. Askıda Forma, <strong>'Çocuklar Üşümesin Yardımlaşma ve Dayanışma Derneği'</strong> bünyesinde yürütülen resmi bir projedir. Yaptığınız her bağış, derneğimiz güvencesi altındadır.",
	},
	{
		Question: "Formalar nereden temin ediliyor?",
		Answer:   "Çocuklarımıza en kalitelisini ulaştırma hassasiyetiyle, tüm formalar doğrudan kulüplerin resmi mağazalarından (GSStore, Fenerium, Kartal Yuvası vb.) temin edilmektedir. Bağışınızla çocuklarımıza hediye edilen <strong>her forma orijinal ve lisanslıdır.</strong>",
	},
}

// FAQ returns a copy of the public FAQ.
func FAQ() []FAQEntry {
	out := make([]FAQEntry, len(faqEntries))
	copy(out, faqEntries)
	return out
}
