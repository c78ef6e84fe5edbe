package prompt

// Attachment is a tagged variant of what a student can attach to a question:
// an image (exercise photo, later transcribed by a vision model) or an
// already-extracted document text. Images must be resolved to text before
// prompt assembly; the assembler itself never does I/O.
type Attachment interface {
	isAttachment()
}

// Image is a raw attached image.
type Image struct {
	MIME string
	Data []byte
}

// Document is extracted attachment text.
type Document struct {
	Text string
}

func (Image) isAttachment()    {}
func (Document) isAttachment() {}

// Sections holds resolved attachment text, keyed by origin. ImageText goes
// into the prompt under a dedicated section with a restate-before-solving
// instruction, so a student can verify the transcription was faithful.
type Sections struct {
	ImageText    string
	DocumentText string
}

// Empty reports whether there is no attachment content at all.
func (s Sections) Empty() bool {
	return s.ImageText == "" && s.DocumentText == ""
}
