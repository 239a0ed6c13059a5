package smtp

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"time"

	"github.com/google/uuid"
)

// Message is a fully-resolved email ready for the wire: substitution and
// sanitization are already done by the time one is built.
type Message struct {
	To             string
	FromName       string
	FromAddress    string
	Subject        string
	HTML           string
	Text           string
	Attachment     []byte // PNG certificate; nil for plain messages
	AttachmentName string
}

// CertificateAttachmentName derives the deterministic attachment filename
// for a certificate id.
func CertificateAttachmentName(certificateID string) string {
	return fmt.Sprintf("certificate-%s.png", certificateID)
}

// buildMIME assembles the RFC 2045 message: multipart/mixed wrapping a
// multipart/alternative (text + html) part and an optional base64 PNG
// attachment. Returns the message bytes and the generated Message-ID.
func buildMIME(msg Message, hostname string) ([]byte, string) {
	messageID := fmt.Sprintf("<%s@%s>", uuid.New().String(), hostname)
	mixedBoundary := "=_mixed_" + uuid.New().String()[:16]
	altBoundary := "=_alt_" + uuid.New().String()[:16]

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", msg.FromName), msg.FromAddress)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Message-ID: %s\r\n", messageID)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=%q\r\n", mixedBoundary)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", mixedBoundary)
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", altBoundary)
	b.WriteString("\r\n")

	if msg.Text != "" {
		fmt.Fprintf(&b, "--%s\r\n", altBoundary)
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
		b.WriteString(msg.Text)
		b.WriteString("\r\n")
	}
	fmt.Fprintf(&b, "--%s\r\n", altBoundary)
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	b.WriteString(msg.HTML)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "--%s--\r\n", altBoundary)

	if len(msg.Attachment) > 0 {
		name := msg.AttachmentName
		if name == "" {
			name = "certificate.png"
		}
		fmt.Fprintf(&b, "--%s\r\n", mixedBoundary)
		fmt.Fprintf(&b, "Content-Type: image/png; name=%q\r\n", name)
		b.WriteString("Content-Transfer-Encoding: base64\r\n")
		fmt.Fprintf(&b, "Content-Disposition: attachment; filename=%q\r\n", name)
		b.WriteString("\r\n")
		writeBase64Wrapped(&b, msg.Attachment)
		b.WriteString("\r\n")
	}

	fmt.Fprintf(&b, "--%s--\r\n", mixedBoundary)
	return b.Bytes(), messageID
}

// writeBase64Wrapped emits base64 in 76-character lines per RFC 2045.
func writeBase64Wrapped(b *bytes.Buffer, data []byte) {
	encoded := base64.StdEncoding.EncodeToString(data)
	const lineLen = 76
	for len(encoded) > lineLen {
		b.WriteString(encoded[:lineLen])
		b.WriteString("\r\n")
		encoded = encoded[lineLen:]
	}
	b.WriteString(encoded)
}
