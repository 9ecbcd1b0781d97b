package testutil

// WithStandardTestData adds three connections covering the common shapes:
// one with several contexts, one with none, and one with a display label.
// Local is selected.
func (b *Builder) WithStandardTestData() *Builder {
	return b.
		WithConnection("Local",
			Endpoint("http://localhost:8080/fhir"),
			Patient("123"), Patient("456"),
			Resource("Encounter", "e-1", "")).
		WithConnection("Staging",
			Endpoint("https://staging.example.org/fhir")).
		WithConnection("Prod",
			Endpoint("https://fhir.example.org/r4"),
			Resource("Patient", "p-9", "Jane Doe")).
		WithCurrent("Local")
}
