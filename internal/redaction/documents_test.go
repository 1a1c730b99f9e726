package redaction

import "testing"

func TestEAadhaarFields(t *testing.T) {
	t.Run("gender spans regional word", func(t *testing.T) {
		doc := newDocument("DOB: 12/05/1990 पुरुष / MALE")
		assertField(t, eAadhaarGender(doc), "MALE", span(0, 2, 4))
	})

	t.Run("gender at index zero is ignored", func(t *testing.T) {
		assertNotFound(t, eAadhaarGender(newDocument("MALE")))
	})

	t.Run("name above date of birth", func(t *testing.T) {
		doc := newDocument("Rahul Kumar Sharma", "DOB: 12/05/1990")
		assertField(t, eAadhaarName(doc), "Rahul Kumar", cell(0, 0), cell(0, 1))
	})

	t.Run("name after addressee header", func(t *testing.T) {
		doc := newDocument("To", "c/o suresh", "Rahul Kumar Sharma")
		assertField(t, eAadhaarName(doc), "Rahul Kumar", cell(2, 0), cell(2, 1))
	})

	t.Run("number after gender on raw pass", func(t *testing.T) {
		doc := newDocument("MALE", "2345 6789 0123")
		assertField(t, eAadhaarNumber(doc), "2345 6789 0123", cell(1, 0), cell(1, 1))
	})

	t.Run("mobile", func(t *testing.T) {
		doc := newDocument("Mobile: 9876543210")
		assertField(t, eAadhaarMobile(doc), "9876543210", CropWidth(cell(0, 1), FractionDate))
	})

	t.Run("dob falls back to raw pass", func(t *testing.T) {
		doc := newDocument("DOB 12/05/1990")
		doc.Default = nil
		assertField(t, eAadhaarDOB(doc), "12/05/1990", CropWidth(cell(0, 1), FractionDate))
	})
}

func TestEPANFields(t *testing.T) {
	doc := newDocument(
		"INCOME TAX DEPARTMENT",
		"ABCDE1234F",
		"ata /Name",
		"RAHUL KUMAR SHARMA",
		"Father's Name",
		"SURESH PRASAD VERMA",
		"12/05/1990 MALE",
	)

	assertField(t, ePANNumber(doc), "ABCDE1234F", CropWidth(cell(1, 0), FractionPAN))
	assertField(t, labelFollowedName(doc, "ata /Name"), "RAHUL KUMAR", span(3, 0, 1))
	assertField(t, labelFollowedName(doc, "Father"), "SURESH PRASAD", span(5, 0, 1))
	assertField(t, ePANBottomBlock(doc), "E-Pancard", Rectangle{X1: 0, Y1: 640, X2: 500, Y2: 800})

	doc.Width = 0
	assertNotFound(t, ePANBottomBlock(doc))
}

func TestPassportFields(t *testing.T) {
	doc := newDocument(
		"REPUBLIC OF INDIA",
		"Passport No.",
		"J8369854",
		"Surname",
		"P",
		"SHARMA",
		"Given Names",
		"RAHUL",
		"Sex",
		"M",
		"Name of Father / Legal Guardian",
		"SURESH KUMAR VERMA",
		"Name of Mother",
		"SUNITA DEVI GUPTA",
		"Name of Spouse",
		"P<INDSHARMA<<RAHUL<<<<<<<<<<<<<<<<<<<<<<<<<",
		"J8369854<1IND9005122M3001012<<<<<<<<<<<<<<<2",
	)

	t.Run("number on data page and machine readable zone", func(t *testing.T) {
		assertField(t, passportNumber(doc), "J8369854", cell(2, 0), cell(16, 0))
	})
	t.Run("surname", func(t *testing.T) {
		assertField(t, passportSurname(doc), "SHARMA", CropWidth(cell(5, 0), FractionPassportName))
	})
	t.Run("given name", func(t *testing.T) {
		assertField(t, passportGivenName(doc), "RAHUL", CropWidth(cell(7, 0), FractionPassportName))
	})
	t.Run("father", func(t *testing.T) {
		got := passportParentName(doc, "Father", func(line string) bool { return line == "Name of Mother" })
		assertField(t, got, "SURESH KUMAR",
			CropWidth(cell(11, 0), FractionPassportName),
			CropWidth(cell(11, 1), FractionPassportName))
	})
	t.Run("mother stops at spouse label", func(t *testing.T) {
		got := passportPipeline.Fields[6].Extract(doc)
		assertField(t, got, "SUNITA DEVI",
			CropWidth(cell(13, 0), FractionPassportName),
			CropWidth(cell(13, 1), FractionPassportName))
	})
	t.Run("gender", func(t *testing.T) {
		assertField(t, passportPipeline.Fields[2].Extract(doc), "M", cell(9, 0))
	})
	t.Run("machine readable name line", func(t *testing.T) {
		got := passportPipeline.Fields[7].Extract(doc)
		assertField(t, got, "P<INDSHARMA<<RAHUL<<<<<<<<<<<<<<<<<<<<<<<<<", CropWidth(cell(15, 0), FractionPassportName))
	})
}

func TestDrivingLicenseName(t *testing.T) {
	doc := newDocument("Name RAHUL KUMAR S/DMW SURESH")
	assertField(t, drivingLicenseName(doc), "RAHUL KUMAR", span(0, 1, 2))

	assertNotFound(t, drivingLicenseName(newDocument("RAHUL KUMAR")))
}

func TestDrivingLicenseStrict(t *testing.T) {
	doc := newDocument(
		"Union of India Driving Licence",
		"DL No 12345678901",
		"Issue 12-05-2015 Valid 11-05-2035",
		"Name RAHUL KUMAR S/ SURESH",
		"Address Bengaluru 560001",
	)

	got := NewEngine(ModeStrict, nil).Redact(doc)
	if got.Status != StatusRedacted || got.DocumentType != DocumentDrivingLicense {
		t.Fatalf("decision = %s %s %q", got.Status, got.DocumentType, got.Message)
	}
	assertField(t, got.Fields[0], "12345678901", cell(1, 2))
	assertField(t, got.Fields[1], "12-05-2015 11-05-2035",
		CropWidth(cell(2, 1), FractionDate),
		CropWidth(cell(2, 3), FractionDate))
}

func TestCDSL(t *testing.T) {
	doc := newDocument(
		"CDSL Ventures Limited",
		"PAN No ABCDE1234F",
		"Name : RAHUL KUMAR SHARMA",
	)

	got := NewEngine(ModePermissive, nil).Redact(doc)
	if got.Status != StatusRedacted || got.DocumentType != DocumentCDSL {
		t.Fatalf("decision = %s %s %q", got.Status, got.DocumentType, got.Message)
	}
	assertField(t, got.Fields[0], "ABCDE1234F", CropWidth(cell(1, 2), FractionPAN))
	assertField(t, got.Fields[1], "RAHUL KUMAR", span(2, 2, 3))
}
