package handlers

// GeneralFallback is the static reply for chit-chat and anything the other
// handlers do not cover. No retrieval or model call is involved.
const GeneralFallback = "I am unable to answer at the moment."
