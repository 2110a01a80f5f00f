package models

import "gorm.io/gorm"

// CreateDefaultSequences seeds the welcome sequence new installs start with.
// Existing rows are left alone.
func CreateDefaultSequences(db *gorm.DB) error {
	welcome := Sequence{
		Name:        "welcome",
		Description: "Default onboarding drip for new contact-form leads",
		IsActive:    true,
	}
	if err := db.FirstOrCreate(&welcome, "name = ?", welcome.Name).Error; err != nil {
		return err
	}

	defaultSteps := []SequenceStep{
		{
			SequenceID: welcome.ID,
			StepOrder:  1,
			Subject:    "Thanks for reaching out, {{first_name}}",
			BodyHTML:   "<p>Hi {{first_name}},</p><p>We received your message and will get back to you within one business day.</p>",
			DelayDays:  0,
			DelayHours: 0,
			IsActive:   true,
		},
		{
			SequenceID: welcome.ID,
			StepOrder:  2,
			Subject:    "How we work with clients like you",
			BodyHTML:   "<p>Hi {{first_name}},</p><p>Here is a quick overview of our process and a few recent results.</p>",
			DelayDays:  2,
			DelayHours: 0,
			IsActive:   true,
		},
		{
			SequenceID: welcome.ID,
			StepOrder:  3,
			Subject:    "Ready when you are, {{full_name}}",
			BodyHTML:   "<p>Hi {{first_name}},</p><p>If you'd like to talk through your project, grab a slot on our calendar.</p>",
			DelayDays:  3,
			DelayHours: 0,
			IsActive:   true,
		},
	}
	for _, step := range defaultSteps {
		if err := db.FirstOrCreate(&step, "sequence_id = ? AND step_order = ?", step.SequenceID, step.StepOrder).Error; err != nil {
			return err
		}
	}
	return nil
}
