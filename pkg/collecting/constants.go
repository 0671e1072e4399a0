package collecting

const unknownValue = "unknown"
