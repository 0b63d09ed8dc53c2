package templates

import (
	"fmt"
	"html"
	"strings"
)

const (
	BookingConfirmation = "booking_confirmation"
	BookingReminder     = "booking_reminder"
	ContactOperator     = "contact_operator"
	ProductRequest      = "product_request_operator"
	TestEmail           = "test_email"
)

const layoutStart = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #f97316; color: white; padding: 20px; text-align: center; }
        .details { background: #f9f9f9; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .footer { text-align: center; padding: 20px; color: #666; }
    </style>
</head>
<body>
    <div class="container">`

const layoutEnd = `
        <div class="footer">
            <p>PassionFruit - rent the gear, live the passion</p>
        </div>
    </div>
</body>
</html>`

var templates = map[string]map[string]string{
	BookingConfirmation: {
		"en": layoutStart + `
        <div class="header"><h1>Booking Received</h1></div>
        <p>Dear {{customer_name}},</p>
        <p>Thank you for booking with PassionFruit. Here are your booking details:</p>
        <div class="details">
            <p><strong>Booking ID:</strong> {{booking_id}}</p>
            <p><strong>Product:</strong> {{product_name}}</p>
            <p><strong>Rental period:</strong> {{rental_period}} ({{rental_duration}})</p>
            <p><strong>Total price:</strong> {{total_price}}</p>
            <p><strong>Status:</strong> {{booking_status}}</p>
            <p><strong>Phone:</strong> {{customer_phone}}</p>
            <p><strong>Email:</strong> {{customer_email}}</p>
            <p><strong>Delivery address:</strong> {{delivery_address}}</p>
            <p><strong>Emergency contact:</strong> {{emergency_contact}}</p>
        </div>
        <p>Our team will call you to confirm delivery.</p>` + layoutEnd,
		"hi": layoutStart + `
        <div class="header"><h1>बुकिंग प्राप्त हुई</h1></div>
        <p>प्रिय {{customer_name}},</p>
        <p>PassionFruit के साथ बुकिंग करने के लिए धन्यवाद। आपकी बुकिंग का विवरण:</p>
        <div class="details">
            <p><strong>बुकिंग आईडी:</strong> {{booking_id}}</p>
            <p><strong>उत्पाद:</strong> {{product_name}}</p>
            <p><strong>किराया अवधि:</strong> {{rental_period}} ({{rental_duration}})</p>
            <p><strong>कुल कीमत:</strong> {{total_price}}</p>
            <p><strong>स्थिति:</strong> {{booking_status}}</p>
            <p><strong>फ़ोन:</strong> {{customer_phone}}</p>
            <p><strong>ईमेल:</strong> {{customer_email}}</p>
            <p><strong>डिलीवरी पता:</strong> {{delivery_address}}</p>
            <p><strong>आपातकालीन संपर्क:</strong> {{emergency_contact}}</p>
        </div>
        <p>डिलीवरी की पुष्टि के लिए हमारी टीम आपको कॉल करेगी।</p>` + layoutEnd,
	},
	BookingReminder: {
		"en": layoutStart + `
        <div class="header"><h1>Your rental starts tomorrow</h1></div>
        <p>Dear {{customer_name}},</p>
        <p>Your {{product_name}} rental starts on {{start_date}} and runs until {{end_date}}.</p>
        <div class="details">
            <p><strong>Booking ID:</strong> {{booking_id}}</p>
            <p><strong>Delivery address:</strong> {{delivery_address}}</p>
        </div>` + layoutEnd,
		"hi": layoutStart + `
        <div class="header"><h1>आपका किराया कल से शुरू होगा</h1></div>
        <p>प्रिय {{customer_name}},</p>
        <p>आपका {{product_name}} किराया {{start_date}} से {{end_date}} तक है।</p>
        <div class="details">
            <p><strong>बुकिंग आईडी:</strong> {{booking_id}}</p>
            <p><strong>डिलीवरी पता:</strong> {{delivery_address}}</p>
        </div>` + layoutEnd,
	},
	ContactOperator: {
		"en": layoutStart + `
        <div class="header"><h1>New Contact Form Submission</h1></div>
        <div class="details">
            <p><strong>From:</strong> {{from_name}} &lt;{{from_email}}&gt;</p>
            <p><strong>Phone:</strong> {{phone_number}}</p>
            <p><strong>Message:</strong></p>
            <p>{{message}}</p>
        </div>` + layoutEnd,
	},
	ProductRequest: {
		"en": layoutStart + `
        <div class="header"><h1>New Product Request</h1></div>
        <div class="details">
            <p><strong>From:</strong> {{from_name}} &lt;{{from_email}}&gt;</p>
            <p><strong>Phone:</strong> {{phone_number}}</p>
            <p><strong>Product:</strong> {{product_name}}</p>
            <p><strong>Category:</strong> {{category}}</p>
            <p><strong>Description:</strong> {{description}}</p>
            <p><strong>Budget:</strong> {{budget}}</p>
            <p><strong>Timeline:</strong> {{timeline}}</p>
        </div>` + layoutEnd,
	},
	TestEmail: {
		"en": `<h1>Test from PassionFruit</h1><p>{{message}}</p>`,
	},
}

func GetTemplate(name, language string) (string, bool) {
	byLang, ok := templates[name]
	if !ok {
		return "", false
	}
	tmpl, ok := byLang[language]
	return tmpl, ok
}

// Render fills {{key}} placeholders in the named template. The template is
// looked up in language first, then in fallback. Values are HTML-escaped;
// unknown placeholders are left as they are.
func Render(name, language, fallback string, data map[string]string) (string, error) {
	tmpl, ok := GetTemplate(name, language)
	if !ok {
		tmpl, ok = GetTemplate(name, fallback)
		if !ok {
			return "", fmt.Errorf("template not found: %s", name)
		}
	}

	result := tmpl
	for key, value := range data {
		result = strings.ReplaceAll(result, "{{"+key+"}}", html.EscapeString(value))
	}
	return result, nil
}
