package health

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Document is one entry of the health knowledge base.
type Document struct {
	ID     string `json:"id"`
	Source string `json:"source,omitempty"`
	Title  string `json:"title"`
	Text   string `json:"text"`
	URL    string `json:"url,omitempty"`
}

// LoadCorpus reads a JSON array of documents. Entries without text are skipped.
func LoadCorpus(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read health corpus: %w", err)
	}

	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parse health corpus %s: %w", path, err)
	}

	out := docs[:0]
	for i, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			continue
		}
		if doc.ID == "" {
			doc.ID = fmt.Sprintf("doc_%d", i)
		}
		out = append(out, doc)
	}
	return out, nil
}

// SeedCorpus is the built-in knowledge base covering the demo catalog.
func SeedCorpus() []Document {
	return []Document{
		{
			ID:     "label_paracetamol",
			Source: "Label information",
			Title:  "Paracetamol Label Information",
			Text: "**Drug Info for Paracetamol**\n\n" +
				"**Indications:** Temporary relief of mild to moderate pain such as headache, toothache and period pain, and reduction of fever.\n\n" +
				"**Contraindications:** Do not use with other products containing paracetamol (acetaminophen). Do not use if you have severe liver disease.\n\n" +
				"**Warnings:** Liver damage may occur if you take more than the maximum daily amount or drink three or more alcoholic drinks every day.\n\n" +
				"**Drug Interactions:** Ask a doctor before use if you are taking the blood thinner warfarin.\n\n" +
				"**Dosage:** Adults: 500mg to 1000mg every 4 to 6 hours. Do not exceed 4000mg in 24 hours.",
		},
		{
			ID:     "label_ibuprofen",
			Source: "Label information",
			Title:  "Ibuprofen Label Information",
			Text: "**Drug Info for Ibuprofen**\n\n" +
				"**Indications:** Temporary relief of minor aches and pains due to headache, muscular aches, back pain, period pain and fever.\n\n" +
				"**Contraindications:** Do not use if you have ever had an allergic reaction to any pain reliever or right before or after heart surgery.\n\n" +
				"**Warnings:** May cause stomach bleeding, especially in people over 60 or with a history of stomach ulcers. Common side effects include nausea and heartburn.\n\n" +
				"**Drug Interactions:** Ask a doctor before use if you take aspirin for heart attack or stroke, a blood thinner, or a steroid drug.\n\n" +
				"**Dosage:** Adults: 200mg to 400mg every 4 to 6 hours with food. Do not exceed 1200mg in 24 hours unless directed by a doctor.",
		},
		{
			ID:     "label_aspirin",
			Source: "Label information",
			Title:  "Aspirin Label Information",
			Text: "**Drug Info for Aspirin**\n\n" +
				"**Indications:** Temporary relief of headache, pain and fever.\n\n" +
				"**Contraindications:** Do not use in children or teenagers under 16 because of the risk of Reye's syndrome. Do not use if you are allergic to aspirin.\n\n" +
				"**Warnings:** Side effects can include stomach upset and bleeding. Stop use and ask a doctor if ringing in the ears occurs.\n\n" +
				"**Drug Interactions:** Ask a doctor before use if you take a blood thinner such as warfarin, or other pain relievers like ibuprofen.\n\n" +
				"**Dosage:** Adults: 300mg to 900mg every 4 to 6 hours. Do not exceed 4000mg in 24 hours.",
		},
		{
			ID:     "label_cetirizine",
			Source: "Label information",
			Title:  "Cetirizine Label Information",
			Text: "**Drug Info for Cetirizine**\n\n" +
				"**Indications:** Relief of hay fever and allergy symptoms: runny nose, sneezing, itchy watery eyes and itching of the nose or throat.\n\n" +
				"**Contraindications:** Do not use if you have ever had an allergic reaction to cetirizine or hydroxyzine.\n\n" +
				"**Warnings:** Drowsiness may occur. Avoid alcoholic drinks and be careful when driving a motor vehicle.\n\n" +
				"**Drug Interactions:** Alcohol, sedatives and tranquilizers may increase drowsiness.\n\n" +
				"**Dosage:** Adults and children 6 years and over: 10mg once daily.",
		},
		{
			ID:     "label_amoxicillin",
			Source: "Label information",
			Title:  "Amoxicillin Label Information",
			Text: "**Drug Info for Amoxicillin**\n\n" +
				"**Indications:** Treatment of bacterial infections of the ear, nose, throat, urinary tract and skin. Prescription only.\n\n" +
				"**Contraindications:** Do not use if you are allergic to penicillin.\n\n" +
				"**Warnings:** Antibiotics do not treat viral infections such as the common cold. Side effects may include diarrhea and rash.\n\n" +
				"**Drug Interactions:** May reduce the effect of oral contraceptives. Tell your doctor if you take methotrexate or warfarin.\n\n" +
				"**Dosage:** As prescribed by your doctor. Complete the full course.",
		},
		{
			ID:     "wiki_vitamin_c",
			Source: "Encyclopedia",
			Title:  "Vitamin C",
			Text: "Vitamin C (ascorbic acid) is an essential nutrient involved in tissue repair and immune function. " +
				"Deficiency causes scurvy. High doses may cause stomach upset and diarrhea.",
		},
		{
			ID:     "topic_headache",
			Source: "Encyclopedia",
			Title:  "Headache",
			Text: "A headache is pain in the head or face. Most tension headaches respond to rest, fluids and over the counter pain relievers such as paracetamol or ibuprofen. " +
				"See a doctor for a sudden severe headache, a headache after a head injury, or one with fever and stiff neck.",
		},
		{
			ID:     "topic_sore_throat",
			Source: "Encyclopedia",
			Title:  "Sore throat",
			Text: "A sore throat is usually caused by a viral infection and gets better within a week. " +
				"Lozenges, warm drinks and pain relievers can ease symptoms. See a doctor if you have difficulty swallowing or breathing.",
		},
	}
}
