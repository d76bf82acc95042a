package database

// FaceEmbeddingDim is the descriptor length of the default face model (dlib ResNet).
const FaceEmbeddingDim = 128
